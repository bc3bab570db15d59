package tgauth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetTelegramID() int64
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetExpiration() *time.Time
	GetRole() string
}

// TokenService mints and validates session tokens.
type TokenService interface {
	Issue(user *User) (*IssuedSession, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(token string) (AuthClaims, error)
}

// IssuedSession is the result of minting a session token. Token and the
// cookie built from it are two distinct delivery channels: Mini App webviews
// cannot be trusted to persist cookies, so the body copy is authoritative
// for in-app fetches.
type IssuedSession struct {
	Token     string
	User      *User
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TelegramAuthenticator verifies an init-data bundle and resolves it into a
// stored user plus a fresh session.
type TelegramAuthenticator interface {
	AuthenticateInitData(ctx context.Context, canonical string) (*IssuedSession, error)
	SessionFromToken(token string) (Session, error)
	UserFromSession(ctx context.Context, session Session) (*User, error)
}

// AvatarResolver is the boundary to the external image pipeline. Resolve
// returns a stored avatar reference for the Telegram profile photo. Failures
// are recovered with the placeholder and never fail an upsert.
type AvatarResolver interface {
	Resolve(ctx context.Context, user *TelegramUser) (string, error)
}

// AvatarResolverFunc adapts a function to the AvatarResolver interface.
type AvatarResolverFunc func(ctx context.Context, user *TelegramUser) (string, error)

func (f AvatarResolverFunc) Resolve(ctx context.Context, user *TelegramUser) (string, error) {
	return f(ctx, user)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetBotToken() string
	GetInitDataMaxAge() time.Duration
	GetCookieName() string
	GetAllowedOrigins() []string
	IsDevBypassEnabled() bool
	IsProduction() bool
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] TGAUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] TGAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] TGAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] TGAUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
