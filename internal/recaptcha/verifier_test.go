package recaptcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auxilium-api/pkg/apierror"
)

func newSiteverify(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "top-secret", r.PostForm.Get("secret"))
		assert.Equal(t, "client-token", r.PostForm.Get("response"))
		assert.Equal(t, "203.0.113.9", r.PostForm.Get("remoteip"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestVerifier_Verify(t *testing.T) {
	t.Run("accepts high score", func(t *testing.T) {
		server := newSiteverify(t, http.StatusOK, `{"success":true,"score":0.9}`)
		v := NewVerifier("top-secret", 0.5, server.URL, time.Second)

		assert.NoError(t, v.Verify(context.Background(), "client-token", "203.0.113.9"))
	})

	t.Run("rejects low score", func(t *testing.T) {
		server := newSiteverify(t, http.StatusOK, `{"success":true,"score":0.1}`)
		v := NewVerifier("top-secret", 0.5, server.URL, time.Second)

		err := v.Verify(context.Background(), "client-token", "203.0.113.9")
		assert.True(t, apierror.IsKind(err, apierror.CodeBadRequest))
	})

	t.Run("rejects unsuccessful verdict", func(t *testing.T) {
		server := newSiteverify(t, http.StatusOK, `{"success":false,"error-codes":["invalid-input-response"]}`)
		v := NewVerifier("top-secret", 0.5, server.URL, time.Second)

		err := v.Verify(context.Background(), "client-token", "203.0.113.9")
		assert.True(t, apierror.IsKind(err, apierror.CodeBadRequest))
	})

	t.Run("service error is unavailable", func(t *testing.T) {
		server := newSiteverify(t, http.StatusBadGateway, `oops`)
		v := NewVerifier("top-secret", 0.5, server.URL, time.Second)

		err := v.Verify(context.Background(), "client-token", "203.0.113.9")
		assert.True(t, apierror.IsKind(err, apierror.CodeServiceUnavailable))
	})

	t.Run("missing token", func(t *testing.T) {
		v := NewVerifier("top-secret", 0.5, "http://127.0.0.1:0", time.Second)

		err := v.Verify(context.Background(), "  ", "")
		assert.True(t, apierror.IsKind(err, apierror.CodeBadRequest))
	})
}

func TestVerifier_TimeoutFailsClosed(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	v := NewVerifier("top-secret", 0.5, server.URL, 50*time.Millisecond)
	err := v.Verify(context.Background(), "client-token", "")
	assert.True(t, apierror.IsKind(err, apierror.CodeServiceUnavailable))
}

func TestDisabled(t *testing.T) {
	assert.NoError(t, Disabled{}.Verify(context.Background(), "anything", ""))
	assert.True(t, apierror.IsKind(Disabled{}.Verify(context.Background(), "", ""), apierror.CodeBadRequest))
}
