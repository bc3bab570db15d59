package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgauth "github.com/taktarovg/3gis-auth"
	"github.com/taktarovg/3gis-auth/client"
)

func TestAuthenticateTelegramSuccess(t *testing.T) {
	user := storedUser()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/telegram", r.URL.Path)

		var req struct {
			InitData json.RawMessage `json:"initData"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.InitData)

		json.NewEncoder(w).Encode(tgauth.AuthResponse{User: user, Token: "fresh-token"})
	}))
	defer srv.Close()

	api := client.NewHTTPAPIClient(srv.URL)

	resp, err := api.AuthenticateTelegram(context.Background(), initDataBundle)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", resp.Token)
	require.NotNil(t, resp.User)
	assert.Equal(t, user.TelegramID, resp.User.TelegramID)
}

func TestAuthenticateTelegramRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "bad request", status: http.StatusBadRequest},
		{name: "forbidden", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			api := client.NewHTTPAPIClient(srv.URL)

			_, err := api.AuthenticateTelegram(context.Background(), initDataBundle)
			assert.ErrorIs(t, err, client.ErrAuthRejected)

			var richErr *errors.Error
			require.True(t, errors.As(err, &richErr))
			assert.Equal(t, tt.status, richErr.Metadata["status"])

			// Status metadata stays on the per-call copy, not the sentinel.
			assert.Nil(t, client.ErrAuthRejected.Metadata)
		})
	}
}

func TestWhoAmISendsBearerToken(t *testing.T) {
	user := storedUser()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/me", r.URL.Path)
		require.Equal(t, "Bearer cached-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(user)
	}))
	defer srv.Close()

	api := client.NewHTTPAPIClient(srv.URL)

	got, err := api.WhoAmI(context.Background(), "cached-token")
	require.NoError(t, err)
	assert.Equal(t, user.TelegramID, got.TelegramID)
}

func TestWhoAmIUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	api := client.NewHTTPAPIClient(srv.URL)

	_, err := api.WhoAmI(context.Background(), "stale-token")
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestWhoAmIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	api := client.NewHTTPAPIClient(srv.URL)

	_, err := api.WhoAmI(context.Background(), "cached-token")
	assert.ErrorIs(t, err, client.ErrNetworkFailure)
}

func TestRefreshSendsCookie(t *testing.T) {
	user := storedUser()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		cookie, err := r.Cookie(tgauth.DefaultCookieName)
		require.NoError(t, err)
		assert.Equal(t, "cached-token", cookie.Value)
		json.NewEncoder(w).Encode(tgauth.AuthResponse{User: user, Token: "reissued"})
	}))
	defer srv.Close()

	api := client.NewHTTPAPIClient(srv.URL)

	resp, err := api.Refresh(context.Background(), "cached-token")
	require.NoError(t, err)
	assert.Equal(t, "reissued", resp.Token)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	api := client.NewHTTPAPIClient(srv.URL)

	_, err := api.WhoAmI(context.Background(), "cached-token")
	require.Error(t, err)

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, client.TextCodeNetworkFailure, richErr.TextCode)
}
