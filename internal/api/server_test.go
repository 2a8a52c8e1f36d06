package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/traildig/traildig-server/internal/auth"
	"github.com/traildig/traildig-server/internal/metrics"
	"github.com/traildig/traildig-server/internal/search"
	"github.com/traildig/traildig-server/internal/service"
	"github.com/traildig/traildig-server/internal/store/sqlite"
)

// testEnvelope decodes both success and error envelopes.
type testEnvelope[T any] struct {
	Version int           `json:"v"`
	Success bool          `json:"success"`
	Data    T             `json:"data"`
	Error   string        `json:"error"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []fieldDetail `json:"details"`
}

type fieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// testServer wraps the API server for handler tests.
type testServer struct {
	*Server
	api     humatest.TestAPI
	sqlite  *sqlite.Store
	tokens  *auth.TokenService
	metrics *metrics.Metrics
}

type testServerOption func(*testServerConfig)

type testServerConfig struct {
	mode          service.TagResolutionMode
	authPerMinute int
	noSearch      bool
}

func withLenientTags() testServerOption {
	return func(c *testServerConfig) { c.mode = service.TagResolutionLenient }
}

func withAuthRateLimit(perMinute int) testServerOption {
	return func(c *testServerConfig) { c.authPerMinute = perMinute }
}

func withoutSearch() testServerOption {
	return func(c *testServerConfig) { c.noSearch = true }
}

// setupTestServer creates a test server backed by a temporary SQLite store.
func setupTestServer(t *testing.T, opts ...testServerOption) *testServer {
	t.Helper()

	cfg := testServerConfig{mode: service.TagResolutionStrict}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokenService, err := auth.NewTokenService(bytes.Repeat([]byte{42}, 32), 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	m := metrics.New()

	var searchService *service.SearchService
	if !cfg.noSearch {
		idx, _, err := search.Open(search.Options{Logger: logger})
		require.NoError(t, err)
		t.Cleanup(func() { _ = idx.Close() })
		searchService = service.NewSearchService(idx, st, logger)
	}

	sessionService := service.NewSessionService(st, tokenService, logger)
	resolver := service.NewTagResolver(cfg.mode, m)
	services := &Services{
		Auth:        service.NewAuthService(st, tokenService, sessionService, m, logger),
		WorkSession: service.NewWorkSessionService(st, resolver, searchService, m, logger),
		Tag:         service.NewTagService(st, searchService, m, logger),
		Search:      searchService,
	}

	s := NewServer(st, services, m, Options{
		Name:          "TrailDig API Test",
		Version:       "test",
		AuthPerMinute: cfg.authPerMinute,
		AuthBurst:     cfg.authPerMinute,
	}, logger)
	t.Cleanup(s.Close)

	return &testServer{
		Server:  s,
		api:     humatest.Wrap(t, s.api),
		sqlite:  st,
		tokens:  tokenService,
		metrics: m,
	}
}

// registerUser signs up through the API and returns the access token and user ID.
func (ts *testServer) registerUser(t *testing.T, email string) (token, userID string) {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":      email,
		"password":   "TestPassword123!",
		"first_name": "Trail",
		"last_name":  "Crew",
	})
	require.Equal(t, http.StatusCreated, resp.Code, "register failed: %s", resp.Body.String())

	env := decode[AuthResponse](t, resp.Body.Bytes())
	return env.Data.AccessToken, env.Data.User.ID
}

// createAdmin creates a superuser and logs them in.
func (ts *testServer) createAdmin(t *testing.T) string {
	t.Helper()

	_, err := ts.services.Auth.CreateSuperuser(context.Background(), "admin@trails.org", "AdminPassword1!")
	require.NoError(t, err)

	resp := ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "admin@trails.org",
		"password": "AdminPassword1!",
	})
	require.Equal(t, http.StatusOK, resp.Code, "login failed: %s", resp.Body.String())
	return decode[AuthResponse](t, resp.Body.Bytes()).Data.AccessToken
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

func decode[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	require.Equal(t, EnvelopeVersion, env.Version)
	return env
}
