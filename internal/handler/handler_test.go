package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"auxilium-api/internal/middleware"
	"auxilium-api/internal/model"
	"auxilium-api/pkg/apierror"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Register(ctx context.Context, req model.RegisterRequest, clientIP string) (model.RegisteredUser, error) {
	args := m.Called(ctx, req, clientIP)
	return args.Get(0).(model.RegisteredUser), args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, req model.LoginRequest, clientIP string) (model.TokenPair, error) {
	args := m.Called(ctx, req, clientIP)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, principal model.Principal) error {
	return m.Called(ctx, principal).Error(0)
}

type mockCaseService struct {
	mock.Mock
}

func (m *mockCaseService) Get(ctx context.Context, p model.Principal, caseID string) (model.Case, error) {
	args := m.Called(ctx, p, caseID)
	return args.Get(0).(model.Case), args.Error(1)
}

func (m *mockCaseService) Mine(ctx context.Context, p model.Principal, page model.Page) (model.CaseList, error) {
	args := m.Called(ctx, p, page)
	return args.Get(0).(model.CaseList), args.Error(1)
}

func (m *mockCaseService) Assigned(ctx context.Context, p model.Principal, page model.Page) (model.CaseList, error) {
	args := m.Called(ctx, p, page)
	return args.Get(0).(model.CaseList), args.Error(1)
}

func (m *mockCaseService) All(ctx context.Context, p model.Principal, assignedTo string, page model.Page) (model.CaseList, error) {
	args := m.Called(ctx, p, assignedTo, page)
	return args.Get(0).(model.CaseList), args.Error(1)
}

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) Me(ctx context.Context, p model.Principal) (model.UserDetails, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(model.UserDetails), args.Error(1)
}

func (m *mockUserService) UpdateFlags(ctx context.Context, actor model.Principal, userID string, req model.UpdateUserRequest) (model.UserDetails, error) {
	args := m.Called(ctx, actor, userID, req)
	return args.Get(0).(model.UserDetails), args.Error(1)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func withPrincipal(req *http.Request, p model.Principal) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), p))
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	svc := &mockAuthService{}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v3/authentication/register",
		strings.NewReader(`{"email_address":"not-an-email","raw_password":"short","full_name":"Ada"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, apierror.CodeBadRequest, env.Error.Code)
	assert.Contains(t, env.Error.Details, "email_address must be a valid email address")
	assert.Contains(t, env.Error.Details, "raw_password must be at least 8 characters")
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthHandler_RegisterCreated(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Register", mock.Anything, mock.MatchedBy(func(r model.RegisterRequest) bool {
		return r.EmailAddress == "ada@example.org" && r.CaseDescription == "help"
	}), "").Return(model.RegisteredUser{ID: "u1", EmailAddress: "ada@example.org"}, nil)

	body := `{"recaptcha_token":"t","email_address":"ada@example.org","raw_password":"long enough pw","full_name":"Ada","case_description":"help"}`
	rec := httptest.NewRecorder()
	NewAuthHandler(svc).Register(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, `{"id":"u1","email_address":"ada@example.org"}`, string(env.Data))
	svc.AssertExpectations(t)
}

func TestAuthHandler_LoginPassesClientIP(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Login", mock.Anything, mock.Anything, "192.0.2.44").
		Return(model.TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", ExpiresIn: 1800}, nil)

	h := middleware.ClientIP(false)(http.HandlerFunc(NewAuthHandler(svc).Login))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email_address":"ada@example.org","raw_password":"pw","recaptcha_token":"t"}`))
	req.RemoteAddr = "192.0.2.44:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, `{"access_token":"a","refresh_token":"r","token_type":"Bearer","expires_in":1800}`, string(env.Data))
	svc.AssertExpectations(t)
}

func TestAuthHandler_LoginErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"bad credentials", apierror.Unauthenticated("Incorrect email or password"), http.StatusUnauthorized, apierror.CodeUnauthenticated},
		{"rate limited", apierror.TooManyRequests(), http.StatusTooManyRequests, apierror.CodeTooManyRequests},
		{"captcha down", apierror.ServiceUnavailable("Unable to verify reCAPTCHA", errors.New("dial")), http.StatusServiceUnavailable, apierror.CodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{}
			svc.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(model.TokenPair{}, tt.err)

			rec := httptest.NewRecorder()
			NewAuthHandler(svc).Login(rec, httptest.NewRequest(http.MethodPost, "/",
				strings.NewReader(`{"email_address":"ada@example.org","raw_password":"pw"}`)))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeEnvelope(t, rec).Error.Code)
		})
	}
}

func TestAuthHandler_RefreshRequiresToken(t *testing.T) {
	svc := &mockAuthService{}
	rec := httptest.NewRecorder()
	NewAuthHandler(svc).Refresh(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewAuthHandler(svc).Refresh(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	svc := &mockAuthService{}
	principal := model.Principal{ID: "u1"}
	svc.On("Logout", mock.Anything, principal).Return(nil)
	h := NewAuthHandler(svc)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Logout(rec, withPrincipal(httptest.NewRequest(http.MethodPost, "/", nil), principal))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"logged_out":true}`, string(decodeEnvelope(t, rec).Data))
	svc.AssertExpectations(t)
}

func TestCaseHandler_ListsWithMeta(t *testing.T) {
	svc := &mockCaseService{}
	principal := model.Principal{ID: "u1"}
	svc.On("All", mock.Anything, principal, "u4", model.Page{Number: 2, Size: 2}).
		Return(model.CaseList{Cases: []model.Case{{ID: "c3"}}, Total: 3}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v3/cases/all?page=2&page_size=2&assigned_to=u4", nil)
	NewCaseHandler(svc).All(rec, withPrincipal(req, principal))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, model.Meta{Page: 2, Limit: 2, Total: 3, TotalPages: 2, HasMore: false}, *env.Meta)
	svc.AssertExpectations(t)
}

func TestCaseHandler_DefaultPaging(t *testing.T) {
	svc := &mockCaseService{}
	principal := model.Principal{ID: "u1"}
	svc.On("Mine", mock.Anything, principal, model.Page{Number: 1, Size: model.DefaultPageSize}).
		Return(model.CaseList{Cases: []model.Case{}, Total: 20}, nil)

	rec := httptest.NewRecorder()
	NewCaseHandler(svc).Mine(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/api/v3/cases/mine", nil), principal))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Meta.HasMore)
	assert.Equal(t, 3, env.Meta.TotalPages)

	rec = httptest.NewRecorder()
	NewCaseHandler(svc).Mine(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/api/v3/cases/mine?page=zero", nil), principal))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaseHandler_RejectsOversizedPage(t *testing.T) {
	svc := &mockCaseService{}
	principal := model.Principal{ID: "u1"}

	for _, page := range []string{"9223372036854775807", "2147483648", "99999999999999999999"} {
		t.Run(page, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v3/cases/mine?page_size=100&page="+page, nil)
			NewCaseHandler(svc).Mine(rec, withPrincipal(req, principal))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, "page must be a positive integer", env.Error.Message)
		})
	}
	svc.AssertNotCalled(t, "Mine", mock.Anything, mock.Anything, mock.Anything)
}

func TestPageSkipStaysNonNegative(t *testing.T) {
	page := model.NewPage(math.MaxInt, model.MaxPageSize)
	assert.Equal(t, model.MaxPageNumber, page.Number)
	assert.GreaterOrEqual(t, page.Skip(), int64(0))

	assert.Equal(t, int64(16), model.NewPage(3, 0).Skip())
}

func TestCaseHandler_GetMapsAccessErrors(t *testing.T) {
	svc := &mockCaseService{}
	principal := model.Principal{ID: "u3"}
	svc.On("Get", mock.Anything, principal, "c1").Return(model.Case{}, apierror.Forbidden("You do not have access to this case"))
	svc.On("Get", mock.Anything, principal, "nope").Return(model.Case{}, apierror.NotFound("Case not found", "nope"))

	r := chi.NewRouter()
	r.Get("/cases/{case_id}", func(w http.ResponseWriter, req *http.Request) {
		NewCaseHandler(svc).Get(w, withPrincipal(req, principal))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/c1", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserHandler(t *testing.T) {
	svc := &mockUserService{}
	admin := model.Principal{ID: "root", IsAdmin: true}
	off := false
	svc.On("Me", mock.Anything, admin).Return(model.UserDetails{ID: "root", FullName: "Root", IsAdmin: true}, nil)
	svc.On("UpdateFlags", mock.Anything, admin, "u2", model.UpdateUserRequest{AllowLogin: &off}).
		Return(model.UserDetails{ID: "u2", AllowLogin: false}, nil)

	h := NewUserHandler(svc)

	rec := httptest.NewRecorder()
	h.Me(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), admin))
	assert.Equal(t, http.StatusOK, rec.Code)

	r := chi.NewRouter()
	r.Patch("/users/{id}", func(w http.ResponseWriter, req *http.Request) {
		h.Update(w, withPrincipal(req, admin))
	})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/users/u2", strings.NewReader(`{"allow_login":false}`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.AssertExpectations(t)
}

type stubPinger struct{ err error }

func (s stubPinger) Health(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"postgres": stubPinger{}, "mongo": stubPinger{}}).
		Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"postgres": stubPinger{}, "mongo": stubPinger{err: errors.New("down")}}).
		Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"postgres":"ok","mongo":"down"}`, string(decodeEnvelope(t, rec).Data))
}

func TestWriteErrorMapsSentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{model.ErrCaseNotFound, http.StatusNotFound},
		{model.ErrUserAlreadyExists, http.StatusConflict},
		{model.ErrTokenNotFound, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tt.err)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
	}
}
