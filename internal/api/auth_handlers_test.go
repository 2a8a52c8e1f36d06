package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":      "Digger@Trails.org",
		"password":   "TestPassword123!",
		"first_name": "Dana",
		"last_name":  "Digger",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	env := decode[AuthResponse](t, resp.Body.Bytes())
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Data.AccessToken)
	assert.NotEmpty(t, env.Data.RefreshToken)
	assert.NotEmpty(t, env.Data.SessionID)
	assert.Equal(t, "Bearer", env.Data.TokenType)
	assert.Equal(t, "Dana Digger", env.Data.User.DisplayName)
	assert.False(t, env.Data.User.IsAdmin)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := setupTestServer(t)
	ts.registerUser(t, "digger@trails.org")

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":    "digger@trails.org",
		"password": "TestPassword123!",
	})
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "ALREADY_EXISTS", decode[any](t, resp.Body.Bytes()).Code)
}

func TestRegister_ShortPassword(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":    "digger@trails.org",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	env := decode[any](t, resp.Body.Bytes())
	require.NotEmpty(t, env.Details)
	assert.Equal(t, "password", env.Details[0].Field)
}

func TestLogin(t *testing.T) {
	ts := setupTestServer(t)
	ts.registerUser(t, "digger@trails.org")

	tests := []struct {
		name     string
		email    string
		password string
		status   int
	}{
		{"valid", "digger@trails.org", "TestPassword123!", http.StatusOK},
		{"email case ignored", "DIGGER@trails.org", "TestPassword123!", http.StatusOK},
		{"wrong password", "digger@trails.org", "WrongPassword1!", http.StatusUnauthorized},
		{"unknown email", "nobody@trails.org", "TestPassword123!", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/auth/login", map[string]any{
				"email":    tt.email,
				"password": tt.password,
			})
			assert.Equal(t, tt.status, resp.Code, resp.Body.String())
		})
	}
}

func TestRefreshAndLogout(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":    "digger@trails.org",
		"password": "TestPassword123!",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	first := decode[AuthResponse](t, resp.Body.Bytes()).Data

	resp = ts.api.Post("/api/v1/auth/refresh", map[string]any{"refresh_token": first.RefreshToken})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	second := decode[AuthResponse](t, resp.Body.Bytes()).Data
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, first.SessionID, second.SessionID)

	// The rotated token is no longer accepted.
	resp = ts.api.Post("/api/v1/auth/refresh", map[string]any{"refresh_token": first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Post("/api/v1/auth/logout", map[string]any{"session_id": second.SessionID})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Logged out successfully", decode[MessageResponse](t, resp.Body.Bytes()).Data.Message)

	resp = ts.api.Post("/api/v1/auth/refresh", map[string]any{"refresh_token": second.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestGetCurrentUser(t *testing.T) {
	ts := setupTestServer(t)
	token, userID := ts.registerUser(t, "digger@trails.org")

	resp := ts.api.Get("/api/v1/users/me", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	user := decode[UserResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "digger@trails.org", user.Email)
	assert.Equal(t, "Trail Crew", user.DisplayName)
}

func TestAuthRateLimit(t *testing.T) {
	ts := setupTestServer(t, withAuthRateLimit(2))

	login := func() int {
		return ts.api.Post("/api/v1/auth/login", map[string]any{
			"email":    "nobody@trails.org",
			"password": "TestPassword123!",
		}).Code
	}

	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusUnauthorized, login())

	resp := ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "nobody@trails.org",
		"password": "TestPassword123!",
	})
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	env := decode[any](t, resp.Body.Bytes())
	assert.Equal(t, "RATE_LIMITED", env.Code)
	assert.Equal(t, msgRateLimited, env.Message)

	// Other clients have their own bucket.
	resp = ts.api.Post("/api/v1/auth/login", "X-Forwarded-For: 203.0.113.9", map[string]any{
		"email":    "nobody@trails.org",
		"password": "TestPassword123!",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
