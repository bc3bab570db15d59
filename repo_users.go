package tgauth

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the durable identity directory, keyed by Telegram user id.
type Users interface {
	repository.Repository[*User]

	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	GetByTelegramIDTx(ctx context.Context, tx bun.IDB, telegramID int64) (*User, error)

	// UpsertTelegram persists a verified identity projection as a single
	// atomic statement. Concurrent first-time logins racing on the same
	// Telegram id converge on one row.
	UpsertTelegram(ctx context.Context, profile *TelegramUser) (*User, error)
	UpsertTelegramTx(ctx context.Context, tx bun.IDB, profile *TelegramUser) (*User, error)

	TouchLastSeen(ctx context.Context, id uuid.UUID) error
	TouchLastSeenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db             *bun.DB
	avatarResolver AvatarResolver
	logger         Logger
	now            func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

// WithUsersAvatarResolver plugs the external image pipeline into the upsert.
func WithUsersAvatarResolver(r AvatarResolver) UsersOption {
	return func(u *users) {
		u.avatarResolver = r
	}
}

// WithUsersLogger overrides the logger.
func WithUsersLogger(logger Logger) UsersOption {
	return func(u *users) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithUsersClock injects a custom clock (useful for tests).
func WithUsersClock(clock func() time.Time) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		logger:     defLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	return a.GetByTelegramIDTx(ctx, a.db, telegramID)
}

func (a *users) GetByTelegramIDTx(ctx context.Context, tx bun.IDB, telegramID int64) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.telegram_id = ?", telegramID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"telegram_id": telegramID,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) UpsertTelegram(ctx context.Context, profile *TelegramUser) (*User, error) {
	return a.UpsertTelegramTx(ctx, a.db, profile)
}

func (a *users) UpsertTelegramTx(ctx context.Context, tx bun.IDB, profile *TelegramUser) (*User, error) {
	if profile == nil || profile.ID <= 0 {
		return nil, ErrMissingUserData
	}

	now := a.now()
	record := &User{
		ID:           uuid.New(),
		TelegramID:   profile.ID,
		Role:         RoleUser,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Username:     profile.Username,
		AvatarURL:    resolveAvatar(ctx, a.avatarResolver, profile, a.logger),
		IsPremium:    profile.IsPremium,
		LanguageCode: profile.LanguageCode,
		CreatedAt:    &now,
		LastSeenAt:   &now,
	}

	// Single statement keyed on telegram_id: fields the bundle did not
	// supply (empty strings) must not clobber stored values, the role is
	// never reset, and last_seen_at only moves forward.
	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (telegram_id) DO UPDATE").
		Set("first_name = COALESCE(NULLIF(excluded.first_name, ''), usr.first_name)").
		Set("last_name = COALESCE(NULLIF(excluded.last_name, ''), usr.last_name)").
		Set("username = COALESCE(NULLIF(excluded.username, ''), usr.username)").
		Set("language_code = COALESCE(NULLIF(excluded.language_code, ''), usr.language_code)").
		Set("is_premium = excluded.is_premium").
		Set("avatar_url = CASE WHEN excluded.avatar_url NOT IN ('', ?) THEN excluded.avatar_url WHEN usr.avatar_url <> '' THEN usr.avatar_url ELSE excluded.avatar_url END", DefaultAvatarURL).
		Set("last_seen_at = CASE WHEN usr.last_seen_at IS NULL OR excluded.last_seen_at > usr.last_seen_at THEN excluded.last_seen_at ELSE usr.last_seen_at END").
		Returning("*").
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	return record, nil
}

var touchLastSeenSQL = `UPDATE "users" AS "usr"
SET
	"last_seen_at" = ?
WHERE
	"usr"."id" = ?
AND (
	"usr"."last_seen_at" IS NULL OR "usr"."last_seen_at" < ?
);`

func (a *users) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	return a.TouchLastSeenTx(ctx, a.db, id)
}

func (a *users) TouchLastSeenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	now := a.now()
	_, err := tx.NewRaw(touchLastSeenSQL, now, id, now).Exec(ctx)
	return err
}
