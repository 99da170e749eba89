// Package recaptcha verifies client tokens against the reCAPTCHA siteverify endpoint.
package recaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"auxilium-api/pkg/apierror"
)

const (
	DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	DefaultTimeout   = 10 * time.Second
)

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

type Verifier struct {
	client    *http.Client
	verifyURL string
	secret    string
	threshold float64
}

func NewVerifier(secret string, threshold float64, verifyURL string, timeout time.Duration) *Verifier {
	if strings.TrimSpace(verifyURL) == "" {
		verifyURL = DefaultVerifyURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Verifier{
		client:    &http.Client{Timeout: timeout},
		verifyURL: verifyURL,
		secret:    secret,
		threshold: threshold,
	}
}

// Verify fails closed. A missing token, an unsuccessful verdict, or a score below the
// threshold is the caller's fault (BadRequest); any transport or HTTP failure is
// ServiceUnavailable.
func (v *Verifier) Verify(ctx context.Context, token string, remoteIP string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apierror.BadRequest("reCAPTCHA token is required", "recaptcha_token")
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return apierror.Internal(fmt.Errorf("build recaptcha request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		slog.Warn("recaptcha verification request failed", "error", err)
		return apierror.ServiceUnavailable("Unable to verify reCAPTCHA", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		slog.Warn("recaptcha verification service error", "status", resp.StatusCode)
		return apierror.ServiceUnavailable("reCAPTCHA verification service error",
			fmt.Errorf("siteverify status %d", resp.StatusCode))
	}

	var result verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&result); err != nil {
		return apierror.ServiceUnavailable("reCAPTCHA verification service error", err)
	}

	if !result.Success {
		slog.Info("recaptcha rejected", "error_codes", strings.Join(result.ErrorCodes, ","))
		return apierror.BadRequest("reCAPTCHA verification failed", "")
	}

	if result.Score < v.threshold {
		slog.Info("recaptcha score below threshold", "score", result.Score, "threshold", v.threshold)
		return apierror.BadRequest("Suspicious activity detected. Please try again.", "")
	}

	return nil
}

// Disabled accepts any non-empty token. Only wired when RECAPTCHA_ENABLED=false.
type Disabled struct{}

func (Disabled) Verify(_ context.Context, token string, _ string) error {
	if strings.TrimSpace(token) == "" {
		return apierror.BadRequest("reCAPTCHA token is required", "recaptcha_token")
	}
	return nil
}
