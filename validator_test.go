package tgauth_test

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgauth "github.com/taktarovg/3gis-auth"
)

const testBotToken = "7123456789:AAE-test-bot-token-for-signing"

// signedInitData builds a canonical query string with a valid hash for
// testBotToken, authored at the given time.
func signedInitData(t *testing.T, authDate time.Time, extra url.Values) string {
	t.Helper()

	values := url.Values{}
	values.Set("auth_date", fmt.Sprintf("%d", authDate.Unix()))
	values.Set("query_id", "AAHdF6IQAAAAAN0XohDhrOrc")
	values.Set("user", `{"id":279058397,"first_name":"Владимир","last_name":"К","username":"vkdev","language_code":"ru","is_premium":true}`)
	for key, vals := range extra {
		for _, val := range vals {
			values.Set(key, val)
		}
	}

	canonical := values.Encode()
	hash, err := tgauth.SignInitData(canonical, testBotToken)
	require.NoError(t, err)

	return canonical + "&hash=" + hash
}

func validatorConfig() *tgauth.SimpleConfig {
	return &tgauth.SimpleConfig{
		BotToken:       testBotToken,
		InitDataMaxAge: 24 * time.Hour,
	}
}

func TestValidateAcceptsSignedPayload(t *testing.T) {
	now := time.Unix(1700000000, 0)
	canonical := signedInitData(t, now.Add(-time.Hour), nil)

	v := tgauth.NewValidator(validatorConfig(), tgauth.WithValidatorClock(func() time.Time {
		return now
	}))

	user, err := v.Validate(canonical)
	require.NoError(t, err)
	assert.EqualValues(t, 279058397, user.ID)
	assert.Equal(t, "Владимир", user.FirstName)
	assert.Equal(t, "vkdev", user.Username)
	assert.True(t, user.IsPremium)
}

func TestValidateRejectsMutatedPayload(t *testing.T) {
	now := time.Unix(1700000000, 0)
	canonical := signedInitData(t, now.Add(-time.Hour), nil)

	v := tgauth.NewValidator(validatorConfig(), tgauth.WithValidatorClock(func() time.Time {
		return now
	}))

	// Flip one byte of the query_id value: the hash no longer covers it.
	mutated := strings.Replace(canonical, "AAHdF6IQ", "AAHdF6IX", 1)
	require.NotEqual(t, canonical, mutated)

	_, err := v.Validate(mutated)
	assert.ErrorIs(t, err, tgauth.ErrInvalidSignature)
}

func TestValidateRejectsMutatedHash(t *testing.T) {
	now := time.Unix(1700000000, 0)
	canonical := signedInitData(t, now.Add(-time.Hour), nil)

	v := tgauth.NewValidator(validatorConfig(), tgauth.WithValidatorClock(func() time.Time {
		return now
	}))

	idx := strings.LastIndex(canonical, "hash=") + len("hash=")
	flipped := byte('0')
	if canonical[idx] == '0' {
		flipped = '1'
	}
	mutated := canonical[:idx] + string(flipped) + canonical[idx+1:]

	_, err := v.Validate(mutated)
	assert.ErrorIs(t, err, tgauth.ErrInvalidSignature)
}

func TestValidateRejectsWrongBotToken(t *testing.T) {
	now := time.Unix(1700000000, 0)
	canonical := signedInitData(t, now.Add(-time.Hour), nil)

	cfg := validatorConfig()
	cfg.BotToken = "7123456789:AAE-some-other-bot"

	v := tgauth.NewValidator(cfg, tgauth.WithValidatorClock(func() time.Time {
		return now
	}))

	_, err := v.Validate(canonical)
	assert.ErrorIs(t, err, tgauth.ErrInvalidSignature)
}

func TestValidateRejectsStaleAuthDate(t *testing.T) {
	now := time.Unix(1700000000, 0)
	// Signature is valid; only the timestamp is outside the window.
	canonical := signedInitData(t, now.Add(-25*time.Hour), nil)

	v := tgauth.NewValidator(validatorConfig(), tgauth.WithValidatorClock(func() time.Time {
		return now
	}))

	_, err := v.Validate(canonical)
	assert.ErrorIs(t, err, tgauth.ErrExpiredInitData)
}

func TestValidateFreshnessWindowOverride(t *testing.T) {
	now := time.Unix(1700000000, 0)
	canonical := signedInitData(t, now.Add(-30*time.Minute), nil)

	cfg := validatorConfig()
	cfg.InitDataMaxAge = 10 * time.Minute

	v := tgauth.NewValidator(cfg, tgauth.WithValidatorClock(func() time.Time {
		return now
	}))

	_, err := v.Validate(canonical)
	assert.ErrorIs(t, err, tgauth.ErrExpiredInitData)
}

func TestValidateRejectsMissingHash(t *testing.T) {
	v := tgauth.NewValidator(validatorConfig())

	_, err := v.Validate("auth_date=1700000000&user=%7B%22id%22%3A1%7D")
	assert.ErrorIs(t, err, tgauth.ErrMalformedInitData)
}

func TestValidateRejectsMissingUser(t *testing.T) {
	now := time.Unix(1700000000, 0)

	values := url.Values{}
	values.Set("auth_date", fmt.Sprintf("%d", now.Add(-time.Hour).Unix()))
	values.Set("query_id", "AAH")
	canonical := values.Encode()
	hash, err := tgauth.SignInitData(canonical, testBotToken)
	require.NoError(t, err)

	v := tgauth.NewValidator(validatorConfig(), tgauth.WithValidatorClock(func() time.Time {
		return now
	}))

	_, err = v.Validate(canonical + "&hash=" + hash)
	assert.ErrorIs(t, err, tgauth.ErrMissingUserData)
}

func TestValidateDevBypassSkipsSignature(t *testing.T) {
	cfg := validatorConfig()
	cfg.DevBypass = true

	v := tgauth.NewValidator(cfg)

	// No hash, stale auth_date, garbage signature chain: only the user
	// projection still applies.
	user, err := v.Validate("auth_date=1&user=%7B%22id%22%3A42%2C%22first_name%22%3A%22Dev%22%7D")
	require.NoError(t, err)
	assert.EqualValues(t, 42, user.ID)
}

func TestValidateDevBypassDisabledInProduction(t *testing.T) {
	cfg := validatorConfig()
	cfg.DevBypass = true
	cfg.Production = true

	v := tgauth.NewValidator(cfg)

	_, err := v.Validate("auth_date=1&user=%7B%22id%22%3A42%7D")
	assert.ErrorIs(t, err, tgauth.ErrMalformedInitData)
}

func TestValidateRejectionsCarryPerCallMetadata(t *testing.T) {
	v := tgauth.NewValidator(validatorConfig())

	_, err := v.Validate("auth_date=1700000000&user=%7B%22id%22%3A1%7D")
	assert.ErrorIs(t, err, tgauth.ErrMalformedInitData)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, "hash field absent", richErr.Metadata["reason"])

	// The metadata rides on a copy; the shared sentinel never picks it up.
	assert.Nil(t, tgauth.ErrMalformedInitData.Metadata)
}

func TestValidateConcurrentRejections(t *testing.T) {
	v := tgauth.NewValidator(validatorConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Validate("auth_date=1700000000&user=%7B%22id%22%3A1%7D")
			assert.ErrorIs(t, err, tgauth.ErrMalformedInitData)
		}()
	}
	wg.Wait()

	assert.Nil(t, tgauth.ErrMalformedInitData.Metadata)
	assert.Nil(t, tgauth.ErrExpiredInitData.Metadata)
}

func TestSignInitDataIgnoresExistingHash(t *testing.T) {
	withHash, err := tgauth.SignInitData("a=1&b=2&hash=ffff", testBotToken)
	require.NoError(t, err)
	withoutHash, err := tgauth.SignInitData("a=1&b=2", testBotToken)
	require.NoError(t, err)

	assert.Equal(t, withHash, withoutHash)
}
