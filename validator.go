package tgauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// secretKeyPrefix is fixed by the Mini App signature scheme: the bot token
// is itself HMAC'd under this literal key before signing the data-check
// string.
const secretKeyPrefix = "WebAppData"

// DefaultInitDataMaxAge is the freshness window applied when the config does
// not override it.
const DefaultInitDataMaxAge = 24 * time.Hour

// Validator verifies the init-data signature chain and freshness window and
// projects the embedded user. The development bypass is latched once at
// construction and is never reachable from a request, nor in production
// configuration.
type Validator struct {
	botToken  string
	maxAge    time.Duration
	devBypass bool
	logger    Logger
	now       func() time.Time
}

// ValidatorOption customizes Validator construction.
type ValidatorOption func(*Validator)

// WithValidatorClock injects a custom clock (useful for tests).
func WithValidatorClock(clock func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if clock != nil {
			v.now = clock
		}
	}
}

// WithValidatorLogger overrides the logger.
func WithValidatorLogger(logger Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewValidator builds a Validator from config.
func NewValidator(cfg Config, opts ...ValidatorOption) *Validator {
	maxAge := cfg.GetInitDataMaxAge()
	if maxAge <= 0 {
		maxAge = DefaultInitDataMaxAge
	}

	v := &Validator{
		botToken:  cfg.GetBotToken(),
		maxAge:    maxAge,
		devBypass: cfg.IsDevBypassEnabled() && !cfg.IsProduction(),
		logger:    defLogger{},
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	if v.devBypass {
		v.logger.Warn("init data signature verification is BYPASSED (development mode)")
	}

	return v
}

// Validate runs the full chain over one canonical query string:
//
//  1. parse pairs, pull out hash
//  2. sort remaining keys, join key=value lines with \n
//  3. secretKey = HMAC-SHA256(key="WebAppData", message=botToken)
//  4. signature = hex(HMAC-SHA256(key=secretKey, message=dataCheckString))
//  5. constant-time compare with the removed hash
//  6. auth_date within the freshness window
//  7. project the user JSON
//
// With the development bypass latched, steps 3-6 are skipped.
func (v *Validator) Validate(canonical string) (*TelegramUser, error) {
	payload, err := ParseInitData(canonical)
	if err != nil {
		return nil, err
	}

	if !v.devBypass {
		if payload.Hash == "" {
			return nil, withMeta(ErrMalformedInitData, map[string]any{
				"reason": "hash field absent",
			})
		}

		if !v.signatureMatches(payload) {
			v.logger.Debug("init data signature mismatch")
			return nil, ErrInvalidSignature
		}

		if err := v.checkFreshness(payload); err != nil {
			return nil, err
		}
	}

	return payload.ProjectUser()
}

func (v *Validator) signatureMatches(payload *InitDataPayload) bool {
	expected, err := hex.DecodeString(payload.Hash)
	if err != nil || len(expected) != sha256.Size {
		return false
	}

	secret := hmac.New(sha256.New, []byte(secretKeyPrefix))
	secret.Write([]byte(v.botToken))
	secretKey := secret.Sum(nil)

	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(payload.DataCheckString()))

	return hmac.Equal(mac.Sum(nil), expected)
}

func (v *Validator) checkFreshness(payload *InitDataPayload) error {
	if payload.AuthDate == 0 {
		return withMeta(ErrMalformedInitData, map[string]any{
			"reason": "auth_date field absent",
		})
	}

	age := v.now().Sub(time.Unix(payload.AuthDate, 0))
	if age > v.maxAge {
		return withMeta(ErrExpiredInitData, map[string]any{
			"age_seconds": int64(age.Seconds()),
			"max_seconds": int64(v.maxAge.Seconds()),
		})
	}
	return nil
}

// SignInitData computes the hash a host would attach to the given canonical
// query string (hash pair excluded). Exposed for tests and tooling that need
// to fabricate valid bundles.
func SignInitData(canonical, botToken string) (string, error) {
	payload, err := ParseInitData(canonical)
	if err != nil {
		return "", err
	}

	secret := hmac.New(sha256.New, []byte(secretKeyPrefix))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(payload.DataCheckString()))

	return hex.EncodeToString(mac.Sum(nil)), nil
}
