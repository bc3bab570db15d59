package tgauth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeMalformedInitData = "auth_malformed_init_data"
	TextCodeInvalidSignature  = "auth_invalid_signature"
	TextCodeExpiredInitData   = "auth_expired_init_data"
	TextCodeMissingUserData   = "auth_missing_user_data"
	TextCodeTokenExpired      = "auth_token_expired"
	TextCodeTokenMalformed    = "auth_token_malformed"
	TextCodeSessionNotFound   = "auth_session_not_found"
	TextCodeUserNotFound      = "auth_user_not_found"
)

// ErrMalformedInitData is returned when init data is neither a query string
// nor a field-keyed object, or cannot be parsed into key/value pairs.
var ErrMalformedInitData = errors.New("malformed init data", errors.CategoryValidation).
	WithTextCode(TextCodeMalformedInitData).
	WithCode(errors.CodeBadRequest)

// ErrInvalidSignature is returned when the init data hash does not match the
// HMAC signature chain for the configured bot token.
var ErrInvalidSignature = errors.New("init data signature mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(errors.CodeForbidden)

// ErrExpiredInitData is returned when auth_date falls outside the freshness
// window, regardless of signature validity.
var ErrExpiredInitData = errors.New("init data expired", errors.CategoryAuth).
	WithTextCode(TextCodeExpiredInitData).
	WithCode(errors.CodeForbidden)

// ErrMissingUserData is returned when the user field is absent or does not
// decode into an identity projection.
var ErrMissingUserData = errors.New("init data has no user payload", errors.CategoryValidation).
	WithTextCode(TextCodeMissingUserData).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned when a session token is past its expiry.
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a session token cannot be parsed or its
// signature does not verify.
var ErrTokenMalformed = errors.New("session token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is the error when the request carries no token on
// either channel (header or cookie).
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUserNotFound is returned when a verified session references a user that
// no longer exists in the directory.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// withMeta attaches per-call metadata to a copy of base. The sentinels above
// are package-level and shared across requests, so WithMetadata must never
// run on them directly; chaining base as the copy's source keeps errors.Is
// identity intact.
func withMeta(base *errors.Error, meta map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(meta)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
