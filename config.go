package tgauth

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SimpleConfig is a plain-values Config implementation. Services that carry
// their own configuration layer can implement Config directly instead.
type SimpleConfig struct {
	SigningKey      string
	TokenExpiration int // hours
	Issuer          string
	Audience        []string
	BotToken        string
	InitDataMaxAge  time.Duration
	CookieName      string
	AllowedOrigins  []string
	DevBypass       bool
	Production      bool
}

var _ Config = (*SimpleConfig)(nil)

func (c *SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c *SimpleConfig) GetTokenExpiration() int { return c.TokenExpiration }

func (c *SimpleConfig) GetIssuer() string { return c.Issuer }

func (c *SimpleConfig) GetAudience() []string { return c.Audience }

func (c *SimpleConfig) GetBotToken() string { return c.BotToken }

func (c *SimpleConfig) GetInitDataMaxAge() time.Duration { return c.InitDataMaxAge }

func (c *SimpleConfig) GetCookieName() string {
	if c.CookieName == "" {
		return DefaultCookieName
	}
	return c.CookieName
}

func (c *SimpleConfig) GetAllowedOrigins() []string { return c.AllowedOrigins }

func (c *SimpleConfig) IsDevBypassEnabled() bool { return c.DevBypass }

func (c *SimpleConfig) IsProduction() bool { return c.Production }

// DefaultCookieName is the session cookie key.
const DefaultCookieName = "tg_session"

// ConfigFromEnv loads a SimpleConfig from environment variables, reading a
// .env file first when present. Recognized variables:
//
//	AUTH_SIGNING_KEY, AUTH_TOKEN_EXPIRATION_HOURS, AUTH_ISSUER,
//	AUTH_AUDIENCE (comma separated), TELEGRAM_BOT_TOKEN,
//	AUTH_INIT_DATA_MAX_AGE (Go duration), AUTH_COOKIE_NAME,
//	AUTH_ALLOWED_ORIGINS (comma separated), AUTH_DEV_BYPASS, APP_ENV
func ConfigFromEnv() *SimpleConfig {
	// Best effort only; production deployments inject real env vars.
	_ = godotenv.Load()

	cfg := &SimpleConfig{
		SigningKey:      os.Getenv("AUTH_SIGNING_KEY"),
		TokenExpiration: getEnvInt("AUTH_TOKEN_EXPIRATION_HOURS"),
		Issuer:          os.Getenv("AUTH_ISSUER"),
		Audience:        splitEnvList("AUTH_AUDIENCE"),
		BotToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		CookieName:      os.Getenv("AUTH_COOKIE_NAME"),
		AllowedOrigins:  splitEnvList("AUTH_ALLOWED_ORIGINS"),
		DevBypass:       getEnvBool("AUTH_DEV_BYPASS"),
		Production:      strings.EqualFold(os.Getenv("APP_ENV"), "production"),
	}

	if raw := os.Getenv("AUTH_INIT_DATA_MAX_AGE"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.InitDataMaxAge = d
		}
	}

	return cfg
}

func getEnvInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return val
}

func getEnvBool(key string) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false
	}
	return val
}

func splitEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
