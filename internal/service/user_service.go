package service

import (
	"context"
	"errors"
	"log/slog"

	"auxilium-api/internal/model"
	"auxilium-api/internal/repository"
	"auxilium-api/pkg/apierror"
)

type UserService struct {
	credentials credentialStore
	profiles    profileStore
}

func NewUserService(credentials credentialStore, profiles profileStore) *UserService {
	return &UserService{credentials: credentials, profiles: profiles}
}

// Me joins the principal with its profile document. A missing profile leaves FullName empty.
func (s *UserService) Me(ctx context.Context, principal model.Principal) (model.UserDetails, error) {
	details := model.UserDetails{
		ID:           principal.ID,
		EmailAddress: principal.EmailAddress,
		IsAdmin:      principal.IsAdmin,
		AllowLogin:   principal.AllowLogin,
	}

	profile, err := s.profiles.Get(ctx, principal.ID)
	switch {
	case err == nil:
		details.FullName = profile.FullName
	case errors.Is(err, model.ErrProfileNotFound):
	default:
		return model.UserDetails{}, apierror.Internal(err)
	}

	return details, nil
}

// UpdateFlags changes is_admin and/or allow_login. Turning login off also ends every
// session of that user in the same transaction.
func (s *UserService) UpdateFlags(ctx context.Context, actor model.Principal, userID string, req model.UpdateUserRequest) (model.UserDetails, error) {
	if !actor.IsAdmin {
		return model.UserDetails{}, apierror.Forbidden("")
	}
	if req.IsAdmin == nil && req.AllowLogin == nil {
		return model.UserDetails{}, apierror.BadRequest("nothing to update", "is_admin, allow_login")
	}

	var updated model.Credential
	err := s.credentials.WithTx(ctx, func(tx repository.CredentialTx) error {
		var err error
		updated, err = tx.UpdateFlags(ctx, userID, req.IsAdmin, req.AllowLogin)
		if err != nil {
			return err
		}

		if !updated.AllowLogin {
			_, err = tx.DeleteRefreshTokensForUser(ctx, userID)
		}
		return err
	})
	if errors.Is(err, model.ErrUserNotFound) {
		return model.UserDetails{}, apierror.NotFound("User not found", userID)
	}
	if err != nil {
		return model.UserDetails{}, classify(err)
	}

	slog.Info("user flags updated", "user_id", userID, "actor_id", actor.ID,
		"is_admin", updated.IsAdmin, "allow_login", updated.AllowLogin)

	return s.Me(ctx, model.PrincipalFromCredential(updated))
}
