package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"auxilium-api/internal/ids"
	"auxilium-api/internal/model"
	"auxilium-api/internal/repository"
	"auxilium-api/pkg/apierror"
)

const invalidCredentialsMessage = "Incorrect email or password"

type credentialStore interface {
	FindByEmail(ctx context.Context, email string) (model.Credential, error)
	FindByID(ctx context.Context, id string) (model.Credential, error)
	WithTx(ctx context.Context, fn func(repository.CredentialTx) error) error
}

type profileStore interface {
	Get(ctx context.Context, id string) (model.Profile, error)
	Save(ctx context.Context, p model.Profile) error
	Delete(ctx context.Context, id string) error
}

type captchaVerifier interface {
	Verify(ctx context.Context, token string, remoteIP string) error
}

type attemptLimiter interface {
	IsRateLimited(identifier string) bool
	RecordAttempt(identifier string)
}

// AuthObserver receives one event per finished workflow step.
type AuthObserver interface {
	ObserveAuth(operation string, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveAuth(string, string) {}

type AuthDependencies struct {
	Credentials credentialStore
	Profiles    profileStore
	Cases       caseStore
	Tokens      *TokenService
	Hasher      *PasswordHasher
	Limiter     attemptLimiter
	Captcha     captchaVerifier
	IDs         *ids.Generator
	Observer    AuthObserver
	Now         func() time.Time
}

type AuthService struct {
	credentials credentialStore
	profiles    profileStore
	cases       caseStore
	tokens      *TokenService
	hasher      *PasswordHasher
	limiter     attemptLimiter
	captcha     captchaVerifier
	ids         *ids.Generator
	observer    AuthObserver
	now         func() time.Time
}

func NewAuthService(deps AuthDependencies) *AuthService {
	s := &AuthService{
		credentials: deps.Credentials,
		profiles:    deps.Profiles,
		cases:       deps.Cases,
		tokens:      deps.Tokens,
		hasher:      deps.Hasher,
		limiter:     deps.Limiter,
		captcha:     deps.Captcha,
		ids:         deps.IDs,
		observer:    deps.Observer,
		now:         deps.Now,
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, clientIP string) (model.RegisteredUser, error) {
	if err := s.captcha.Verify(ctx, req.RecaptchaToken, clientIP); err != nil {
		s.observer.ObserveAuth("register", "captcha_rejected")
		return model.RegisteredUser{}, err
	}

	email := normalizeEmail(req.EmailAddress)
	if email == "" || req.RawPassword == "" {
		return model.RegisteredUser{}, apierror.BadRequest("email_address and raw_password are required", "")
	}

	_, err := s.credentials.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.observer.ObserveAuth("register", "conflict")
		return model.RegisteredUser{}, emailTaken()
	case !errors.Is(err, model.ErrUserNotFound):
		return model.RegisteredUser{}, apierror.Internal(err)
	}

	passwordHash, err := s.hasher.Hash(req.RawPassword)
	if err != nil {
		return model.RegisteredUser{}, apierror.Internal(err)
	}

	userID := s.ids.NewString(ids.ObjectUser)
	profile := model.Profile{
		ID:              userID,
		EmailAddress:    email,
		FullName:        strings.TrimSpace(req.FullName),
		TelephoneNumber: strings.TrimSpace(req.TelephoneNumber),
		FullAddress:     strings.TrimSpace(req.FullAddress),
		Gender:          req.Gender,
		EthnicGroup:     req.EthnicGroup,
		DateOfBirth:     req.DateOfBirth,
		CreatedAt:       s.now().UTC(),
	}
	initialCase := model.Case{
		ID:          s.ids.NewString(ids.ObjectCase),
		Sensitivity: model.DefaultCaseSensitivity,
		Title:       "Initial referral",
		Status:      model.DefaultCaseStatus,
		Description: req.CaseDescription,
		Workers:     []string{},
		Clients:     []string{userID},
		AdditionalProperties: map[string]any{
			"on_behalf_of":                           req.OnBehalfOf,
			"data_processing_consent":                req.DataProcessingConsent,
			"how_did_you_find_out_about_our_service": req.HowDidYouFindOutAboutOurService,
		},
	}

	// The document store is outside the relational transaction. Each document write
	// registers an undo that runs if anything later fails, commit included.
	var undo []func(context.Context) error

	err = s.credentials.WithTx(ctx, func(tx repository.CredentialTx) error {
		if err := tx.Insert(ctx, model.Credential{
			ID:           userID,
			EmailAddress: email,
			PasswordHash: passwordHash,
			IsAdmin:      false,
			AllowLogin:   true,
		}); err != nil {
			return err
		}

		undo = append(undo, func(ctx context.Context) error { return s.profiles.Delete(ctx, profile.ID) })
		if err := s.profiles.Save(ctx, profile); err != nil {
			return err
		}

		undo = append(undo, func(ctx context.Context) error { return s.cases.Delete(ctx, initialCase.ID) })
		return s.cases.Save(ctx, initialCase)
	})
	if err != nil {
		s.compensate(ctx, userID, undo)

		if errors.Is(err, model.ErrUserAlreadyExists) {
			s.observer.ObserveAuth("register", "conflict")
			return model.RegisteredUser{}, emailTaken()
		}
		s.observer.ObserveAuth("register", "error")
		return model.RegisteredUser{}, classify(err)
	}

	s.observer.ObserveAuth("register", "success")
	slog.Info("user registered", "user_id", userID)

	return model.RegisteredUser{ID: userID, EmailAddress: email}, nil
}

// compensate undoes document writes in reverse order. It runs detached from the request
// context so a cancelled request still cleans up.
func (s *AuthService) compensate(ctx context.Context, userID string, undo []func(context.Context) error) {
	if len(undo) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i](ctx); err != nil {
			slog.Error("registration compensation failed", "user_id", userID, "error", err)
		}
	}
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, clientIP string) (model.TokenPair, error) {
	if err := s.captcha.Verify(ctx, req.RecaptchaToken, clientIP); err != nil {
		s.observer.ObserveAuth("login", "captcha_rejected")
		return model.TokenPair{}, err
	}

	email := normalizeEmail(req.EmailAddress)
	identifiers := []string{email}
	if clientIP != "" {
		identifiers = append(identifiers, "ip:"+clientIP)
	}

	for _, id := range identifiers {
		if s.limiter.IsRateLimited(id) {
			s.observer.ObserveAuth("login", "rate_limited")
			slog.Warn("login rate limited", "client_ip", clientIP)
			return model.TokenPair{}, apierror.TooManyRequests()
		}
	}
	for _, id := range identifiers {
		s.limiter.RecordAttempt(id)
	}

	cred, err := s.credentials.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.BurnVerify(req.RawPassword)
		s.observer.ObserveAuth("login", "invalid_credentials")
		return model.TokenPair{}, apierror.Unauthenticated(invalidCredentialsMessage)
	}
	if err != nil {
		return model.TokenPair{}, apierror.Internal(err)
	}

	if !cred.AllowLogin {
		s.hasher.BurnVerify(req.RawPassword)
		s.observer.ObserveAuth("login", "invalid_credentials")
		return model.TokenPair{}, apierror.Unauthenticated(invalidCredentialsMessage)
	}

	ok, err := s.hasher.Verify(req.RawPassword, cred.PasswordHash)
	if err != nil {
		slog.Error("stored password hash unreadable", "user_id", cred.ID, "error", err)
	}
	if !ok {
		s.observer.ObserveAuth("login", "invalid_credentials")
		return model.TokenPair{}, apierror.Unauthenticated(invalidCredentialsMessage)
	}

	issued, err := s.tokens.IssuePair(cred.ID)
	if err != nil {
		return model.TokenPair{}, apierror.Internal(err)
	}

	err = s.credentials.WithTx(ctx, func(tx repository.CredentialTx) error {
		if _, err := tx.DeleteExpiredRefreshTokens(ctx, cred.ID, s.now().UTC()); err != nil {
			return err
		}
		return tx.InsertRefreshToken(ctx, cred.ID, issued.RefreshHash, issued.RefreshExpiresAt)
	})
	if err != nil {
		s.observer.ObserveAuth("login", "error")
		return model.TokenPair{}, classify(err)
	}

	s.observer.ObserveAuth("login", "success")
	slog.Info("user logged in", "user_id", cred.ID)

	return issued.Tokens, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	claims, err := s.tokens.DecodeType(refreshToken, model.TokenTypeRefresh)
	if err != nil {
		s.observer.ObserveAuth("refresh", "invalid_token")
		return model.TokenPair{}, err
	}

	presented := HashRefreshToken(strings.TrimSpace(refreshToken))

	var issued IssuedPair
	err = s.credentials.WithTx(ctx, func(tx repository.CredentialTx) error {
		session, err := tx.FindActiveRefreshToken(ctx, presented)
		if errors.Is(err, model.ErrTokenNotFound) {
			return apierror.Unauthenticated("")
		}
		if err != nil {
			return err
		}

		if session.UserID != claims.UserID || !session.User.AllowLogin {
			return apierror.Unauthenticated("")
		}

		issued, err = s.tokens.IssuePair(session.UserID)
		if err != nil {
			return err
		}

		rotated, err := tx.RotateRefreshToken(ctx, presented, issued.RefreshHash, issued.RefreshExpiresAt)
		if err != nil {
			return err
		}
		if !rotated {
			slog.Warn("refresh token replay rejected", "user_id", session.UserID)
			return apierror.Unauthenticated("")
		}
		return nil
	})
	if err != nil {
		if apierror.IsKind(err, apierror.CodeUnauthenticated) {
			s.observer.ObserveAuth("refresh", "invalid_token")
		} else {
			s.observer.ObserveAuth("refresh", "error")
		}
		return model.TokenPair{}, classify(err)
	}

	s.observer.ObserveAuth("refresh", "success")
	return issued.Tokens, nil
}

// Logout drops every refresh token of the principal. Repeating it is harmless.
func (s *AuthService) Logout(ctx context.Context, principal model.Principal) error {
	var removed int64
	err := s.credentials.WithTx(ctx, func(tx repository.CredentialTx) error {
		var err error
		removed, err = tx.DeleteRefreshTokensForUser(ctx, principal.ID)
		return err
	})
	if err != nil {
		s.observer.ObserveAuth("logout", "error")
		return classify(err)
	}

	s.observer.ObserveAuth("logout", "success")
	slog.Info("user logged out", "user_id", principal.ID, "sessions_removed", removed)
	return nil
}

// ResolvePrincipal turns a bearer access token into the principal it belongs to. The
// credential row is read on every call.
func (s *AuthService) ResolvePrincipal(ctx context.Context, accessToken string) (model.Principal, error) {
	claims, err := s.tokens.DecodeType(accessToken, model.TokenTypeAccess)
	if err != nil {
		return model.Principal{}, err
	}

	cred, err := s.credentials.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Principal{}, apierror.Unauthenticated("")
	}
	if err != nil {
		return model.Principal{}, apierror.Internal(err)
	}

	return model.PrincipalFromCredential(cred), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailTaken() *apierror.APIError {
	return apierror.Conflict("Email address already registered", "email_address")
}

// classify keeps tagged errors as they are and turns everything else into Internal.
func classify(err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return apierror.Internal(err)
}
