package tgauth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	tgauth "github.com/taktarovg/3gis-auth"
)

func setupAuther(t *testing.T, now func() time.Time) (*tgauth.Auther, tgauth.Users, *bun.DB, func()) {
	t.Helper()

	repo, db, cleanup := setupUsersRepo(t, tgauth.WithUsersClock(now))

	cfg := &tgauth.SimpleConfig{
		SigningKey:      "test-signing-key-32-bytes-long!!",
		TokenExpiration: 168,
		Issuer:          "3gis-auth",
		BotToken:        testBotToken,
		InitDataMaxAge:  24 * time.Hour,
	}

	validator := tgauth.NewValidator(cfg, tgauth.WithValidatorClock(now))
	tokens := tgauth.NewTokenService(cfg, tgauth.WithTokenClock(now))

	return tgauth.NewAuthenticator(validator, repo, tokens), repo, db, cleanup
}

func TestAuthenticateInitDataEndToEnd(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	auther, _, _, cleanup := setupAuther(t, func() time.Time { return now })
	defer cleanup()

	ctx := context.Background()
	canonical := signedInitData(t, now.Add(-time.Hour), nil)

	session, err := auther.AuthenticateInitData(ctx, canonical)
	require.NoError(t, err)
	require.NotNil(t, session.User)
	assert.NotEmpty(t, session.Token)
	assert.EqualValues(t, 279058397, session.User.TelegramID)
	assert.Equal(t, tgauth.RoleUser, session.User.Role)

	// The token round-trips back to the same user.
	parsed, err := auther.SessionFromToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID.String(), parsed.GetUserID())
	assert.EqualValues(t, 279058397, parsed.GetTelegramID())
	assert.Equal(t, "3gis-auth", parsed.GetIssuer())

	user, err := auther.UserFromSession(ctx, parsed)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)
}

func TestAuthenticateInitDataRejectsInvalid(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	auther, _, db, cleanup := setupAuther(t, func() time.Time { return now })
	defer cleanup()

	ctx := context.Background()
	canonical := signedInitData(t, now.Add(-time.Hour), nil)
	mutated := canonical[:len(canonical)-1] + "0"
	if mutated == canonical {
		mutated = canonical[:len(canonical)-1] + "1"
	}

	_, err := auther.AuthenticateInitData(ctx, mutated)
	assert.ErrorIs(t, err, tgauth.ErrInvalidSignature)

	// A rejected bundle never creates a user.
	assert.Equal(t, 0, countUsers(t, db))
}

func TestSessionFromTokenGarbage(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	auther, _, _, cleanup := setupAuther(t, func() time.Time { return now })
	defer cleanup()

	_, err := auther.SessionFromToken("not-a-jwt")
	assert.Error(t, err)
}

func TestUserFromSessionStaleToken(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	auther, repo, db, cleanup := setupAuther(t, func() time.Time { return now })
	defer cleanup()

	ctx := context.Background()
	canonical := signedInitData(t, now.Add(-time.Hour), nil)

	session, err := auther.AuthenticateInitData(ctx, canonical)
	require.NoError(t, err)

	parsed, err := auther.SessionFromToken(session.Token)
	require.NoError(t, err)

	// Account deleted and re-created under the same Telegram id: the old
	// token references a row that no longer exists.
	_, err = db.NewDelete().
		Model((*tgauth.User)(nil)).
		Where("telegram_id = ?", session.User.TelegramID).
		Exec(ctx)
	require.NoError(t, err)

	_, err = auther.UserFromSession(ctx, parsed)
	assert.ErrorIs(t, err, tgauth.ErrUserNotFound)

	_, err = repo.UpsertTelegram(ctx, telegramProfile())
	require.NoError(t, err)

	_, err = auther.UserFromSession(ctx, parsed)
	assert.ErrorIs(t, err, tgauth.ErrUserNotFound)
}

func TestUserFromSessionAdvancesLastSeen(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	current := base
	auther, repo, _, cleanup := setupAuther(t, func() time.Time { return current })
	defer cleanup()

	ctx := context.Background()
	canonical := signedInitData(t, base.Add(-time.Hour), nil)

	session, err := auther.AuthenticateInitData(ctx, canonical)
	require.NoError(t, err)

	parsed, err := auther.SessionFromToken(session.Token)
	require.NoError(t, err)

	current = base.Add(time.Hour)
	_, err = auther.UserFromSession(ctx, parsed)
	require.NoError(t, err)

	stored, err := repo.GetByTelegramID(ctx, session.User.TelegramID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastSeenAt)
	assert.Equal(t, base.Add(time.Hour).Unix(), stored.LastSeenAt.Unix())
}
