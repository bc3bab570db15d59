package tgauth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is a regular directory visitor
	RoleUser UserRole = "user"
	// RoleBusinessOwner can manage their own listings
	RoleBusinessOwner UserRole = "business_owner"
	// RoleAdmin can moderate any listing
	RoleAdmin UserRole = "admin"
)

// DefaultAvatarURL is the placeholder reference used until the image
// pipeline delivers a real avatar, and whenever enrichment fails.
const DefaultAvatarURL = "/images/default-avatar.png"

// User is one durable identity per Telegram account.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	TelegramID    int64      `bun:"telegram_id,notnull,unique" json:"telegram_id,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name" json:"last_name,omitempty"`
	Username      string     `bun:"username" json:"username,omitempty"`
	AvatarURL     string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	IsPremium     bool       `bun:"is_premium" json:"is_premium,omitempty"`
	LanguageCode  string     `bun:"language_code" json:"language_code,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	LastSeenAt    *time.Time `bun:"last_seen_at,nullzero" json:"last_seen_at,omitempty"`
}

// TelegramUser is the identity projection parsed from the init-data user
// field. Field names are fixed by the Mini App host.
type TelegramUser struct {
	ID              int64  `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name,omitempty"`
	Username        string `json:"username,omitempty"`
	LanguageCode    string `json:"language_code,omitempty"`
	IsPremium       bool   `json:"is_premium,omitempty"`
	PhotoURL        string `json:"photo_url,omitempty"`
	AllowsWriteToPM bool   `json:"allows_write_to_pm,omitempty"`
}
