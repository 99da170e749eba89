package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindConstructors(t *testing.T) {
	cases := []struct {
		err    *APIError
		code   string
		status int
	}{
		{BadRequest("bad", ""), CodeBadRequest, http.StatusBadRequest},
		{Unauthenticated(""), CodeUnauthenticated, http.StatusUnauthorized},
		{Forbidden(""), CodeForbidden, http.StatusForbidden},
		{NotFound("missing", "x"), CodeNotFound, http.StatusNotFound},
		{Conflict("dup", ""), CodeConflict, http.StatusConflict},
		{TooManyRequests(), CodeTooManyRequests, http.StatusTooManyRequests},
		{Internal(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
		{ServiceUnavailable("down", nil), CodeServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.status, tc.err.HTTPStatus)
		assert.NotEmpty(t, tc.err.Message)
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("login: %w", Unauthenticated(""))

	assert.True(t, IsKind(err, CodeUnauthenticated))
	assert.False(t, IsKind(err, CodeForbidden))
	assert.False(t, IsKind(errors.New("plain"), CodeUnauthenticated))
}

func TestInternalKeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Internal(cause)

	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Error(), "connection reset")
}
