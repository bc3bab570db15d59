package tgauth

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Auther resolves verified init data into stored users and session tokens.
type Auther struct {
	validator    *Validator
	users        Users
	tokenService TokenService
	logger       Logger
}

var _ TelegramAuthenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(validator *Validator, users Users, tokenService TokenService) *Auther {
	return &Auther{
		validator:    validator,
		users:        users,
		tokenService: tokenService,
		logger:       defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// AuthenticateInitData verifies one canonical init-data string, upserts the
// identity, and mints a session. This is the only path that creates users.
func (s *Auther) AuthenticateInitData(ctx context.Context, canonical string) (*IssuedSession, error) {
	profile, err := s.validator.Validate(canonical)
	if err != nil {
		s.logger.Debug("init data validation failed", "error", err)
		return nil, err
	}

	user, err := s.users.UpsertTelegram(ctx, profile)
	if err != nil {
		s.logger.Error("user upsert failed", "telegram_id", profile.ID, "error", err)
		return nil, err
	}

	session, err := s.tokenService.Issue(user)
	if err != nil {
		s.logger.Error("session issuance failed", "user_id", user.ID, "error", err)
		return nil, err
	}

	s.logger.Info("telegram auth succeeded", "telegram_id", profile.ID, "user_id", user.ID)
	return session, nil
}

// SessionFromToken validates a session token and converts its claims.
func (s *Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Debug("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	return sessionFromAuthClaims(claims)
}

// UserFromSession loads the user record a session refers to and advances
// last_seen_at.
func (s *Auther) UserFromSession(ctx context.Context, session Session) (*User, error) {
	id, err := uuid.Parse(session.GetUserID())
	if err != nil {
		return nil, ErrTokenMalformed
	}

	user, err := s.users.GetByTelegramID(ctx, session.GetTelegramID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// The token's record id must still match the directory row; a stale
	// token referencing a re-created account is rejected.
	if user.ID != id {
		return nil, ErrUserNotFound
	}

	if err := s.users.TouchLastSeen(ctx, user.ID); err != nil {
		s.logger.Warn("failed to advance last_seen_at", "user_id", user.ID, "error", err)
	}

	return user, nil
}
