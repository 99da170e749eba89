//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"auxilium-api/internal/app"
	"auxilium-api/internal/config"
)

// newServer boots the full application against the stores named by
// INTEGRATION_DATABASE_URL and INTEGRATION_MONGO_URI. Each server gets its own
// document database so case fixtures never leak between tests.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	databaseURL := os.Getenv("INTEGRATION_DATABASE_URL")
	mongoURI := os.Getenv("INTEGRATION_MONGO_URI")
	if databaseURL == "" || mongoURI == "" {
		t.Skip("INTEGRATION_DATABASE_URL and INTEGRATION_MONGO_URI are required")
	}

	cfg := &config.Config{
		ServerPort:              "0",
		ServerReadHeaderTimeout: 15 * time.Second,
		ServerWriteTimeout:      30 * time.Second,
		ServerIdleTimeout:       120 * time.Second,
		RequestTimeout:          30 * time.Second,
		DatabaseURL:             databaseURL,
		DBMaxConns:              4,
		DBMinConns:              1,
		MongoURI:                mongoURI,
		MongoDatabase:           "auxilium_it_" + strings.ToLower(ulid.Make().String()),
		MongoCasesCollection:    "Cases",
		MongoUsersCollection:    "Users",
		JWTSecret:               "integration-secret",
		JWTAlgorithm:            "HS256",
		JWTAccessTTL:            15 * time.Minute,
		JWTRefreshTTL:           24 * time.Hour,
		MaxLoginAttempts:        5,
		RateLimitWindowMinutes:  15,
		RateLimitRPM:            1000,
		AuthRateLimitRPM:        1000,
		RecaptchaEnabled:        false,
		InstanceQualifiedDNS:    "it.auxilium.test",
		CORSOrigins:             []string{"*"},
		LogLevel:                "info",
		LogFormat:               "text",
	}
	require.NoError(t, cfg.Validate())

	application, err := app.Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(application.Close)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(server.Close)
	return server
}

func uniqueEmail() string {
	return fmt.Sprintf("it-%s@example.org", strings.ToLower(ulid.Make().String()))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, method string, url string, body any, accessToken string) (*http.Response, envelope) {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

type tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func registerAndLogin(t *testing.T, baseURL string, email string, password string) tokens {
	t.Helper()

	resp, _ := doJSON(t, http.MethodPost, baseURL+"/api/v3/authentication/register", map[string]string{
		"recaptcha_token":  "integration",
		"email_address":    email,
		"raw_password":     password,
		"full_name":        "Integration Client",
		"case_description": "needs advice",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := doJSON(t, http.MethodPost, baseURL+"/api/v3/authentication/login", map[string]string{
		"recaptcha_token": "integration",
		"email_address":   email,
		"raw_password":    password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair tokens
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}
