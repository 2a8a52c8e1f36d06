package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traildig/traildig-server/internal/auth"
	"github.com/traildig/traildig-server/internal/service"
	"github.com/traildig/traildig-server/internal/store"
	"github.com/traildig/traildig-server/internal/store/sqlite"
)

const sampleFixtures = `
users:
  - email: admin@trails.org
    password: admin-password
    admin: true
  - email: crew@trails.org
    password: crew-password
    first_name: Sam
tags:
  - owner: crew@trails.org
    name: Drainage
  - owner: crew@trails.org
    name: Bridge
sessions:
  - owner: crew@trails.org
    title: Ridge ditch
    time_minutes: 120
    number_people: 4
    occurred_at: "2024-11-01T20:01:00"
    tags: [Drainage]
  - owner: crew@trails.org
    title: Creek crossing
    time_minutes: 60
    number_people: 2
    tags: [Drainage, Bridge]
`

func newTestSeeder(t *testing.T) (seeder, *sqlite.Store) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "seed.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokens, err := auth.NewTokenService(bytes.Repeat([]byte{7}, 32), time.Minute, time.Hour)
	require.NoError(t, err)

	sessions := service.NewSessionService(st, tokens, logger)
	return seeder{
		store:        st,
		auth:         service.NewAuthService(st, tokens, sessions, nil, logger),
		tags:         service.NewTagService(st, nil, nil, logger),
		workSessions: service.NewWorkSessionService(st, service.NewTagResolver(service.TagResolutionStrict, nil), nil, nil, logger),
	}, st
}

func TestLoadFixtures(t *testing.T) {
	fx, err := loadFixtures(strings.NewReader(sampleFixtures))
	require.NoError(t, err)

	require.Len(t, fx.Users, 2)
	assert.True(t, fx.Users[0].Admin)
	assert.Equal(t, "Sam", fx.Users[1].FirstName)
	require.Len(t, fx.Sessions, 2)
	assert.Equal(t, []string{"Drainage", "Bridge"}, fx.Sessions[1].Tags)
}

func TestLoadFixtures_Empty(t *testing.T) {
	fx, err := loadFixtures(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, fx.Users)
}

func TestLoadFixtures_UnknownKey(t *testing.T) {
	_, err := loadFixtures(strings.NewReader("users:\n  - email: a@b.org\n    role: boss\n"))
	assert.Error(t, err)
}

func TestSeederApply(t *testing.T) {
	s, st := newTestSeeder(t)
	ctx := context.Background()

	fx, err := loadFixtures(strings.NewReader(sampleFixtures))
	require.NoError(t, err)

	report, err := s.apply(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, seedReport{Users: 2, Tags: 2, Sessions: 2}, report)

	admin, err := st.GetUserByEmail(ctx, "admin@trails.org")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	crew, err := st.GetUserByEmail(ctx, "crew@trails.org")
	require.NoError(t, err)

	tags, err := st.ListTags(ctx, crew.ID)
	require.NoError(t, err)
	totals := make(map[string]int, len(tags))
	for _, tag := range tags {
		totals[tag.Name] = tag.AmountWorkDoneMinutes
	}
	assert.Equal(t, map[string]int{"Drainage": 180, "Bridge": 60}, totals)

	sessions, err := st.ListWorkSessions(ctx, store.WorkSessionFilter{OwnerID: crew.ID})
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	// A second run skips users and tags but adds the sessions again.
	report, err = s.apply(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, seedReport{Sessions: 2, Skipped: 4}, report)
}

func TestSeederApply_UnknownOwner(t *testing.T) {
	s, _ := newTestSeeder(t)

	_, err := s.apply(context.Background(), &fixtures{
		Tags: []tagFixture{{Owner: "ghost@trails.org", Name: "Drainage"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost@trails.org")
}
