package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/traildig/traildig-server/internal/domain"
	"github.com/traildig/traildig-server/internal/store"
)

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := makeTestUser("user-1", "Alice@example.com")
	user.IsRoot = true
	user.Role = domain.RoleAdmin

	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}

	if got.Email != user.Email {
		t.Errorf("Email: got %q, want %q", got.Email, user.Email)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Errorf("PasswordHash: got %q, want %q", got.PasswordHash, user.PasswordHash)
	}
	if !got.IsRoot {
		t.Error("IsRoot: expected true")
	}
	if got.Role != domain.RoleAdmin {
		t.Errorf("Role: got %q, want %q", got.Role, domain.RoleAdmin)
	}
	if got.DisplayName != "Test User" {
		t.Errorf("DisplayName: got %q", got.DisplayName)
	}
	if !got.LastLoginAt.IsZero() {
		t.Errorf("LastLoginAt: expected zero, got %v", got.LastLoginAt)
	}
	if !got.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, user.CreatedAt)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "nope")
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected generic ErrNotFound match, got %v", err)
	}
}

func TestGetUserByEmail_IgnoresCase(t *testing.T) {
	s := newTestStore(t)
	mustCreateUser(t, s, "user-1", "Digger@trails.org")

	got, err := s.GetUserByEmail(context.Background(), "digger@TRAILS.org")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != "user-1" {
		t.Errorf("ID: got %q", got.ID)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	mustCreateUser(t, s, "user-1", "digger@trails.org")

	err := s.CreateUser(context.Background(), makeTestUser("user-2", "DIGGER@trails.org"))
	if !errors.Is(err, store.ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := mustCreateUser(t, s, "user-1", "digger@trails.org")

	user.DisplayName = "Crew Lead"
	user.LastLoginAt = time.Now()
	user.Touch()
	if err := s.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	got, err := s.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.DisplayName != "Crew Lead" {
		t.Errorf("DisplayName: got %q", got.DisplayName)
	}
	if got.LastLoginAt.IsZero() {
		t.Error("LastLoginAt: expected to be set")
	}

	missing := makeTestUser("user-404", "ghost@trails.org")
	if err := s.UpdateUser(ctx, missing); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestListAndCountUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CountUsers(ctx)
	if err != nil || n != 0 {
		t.Fatalf("CountUsers: got %d, %v", n, err)
	}

	mustCreateUser(t, s, "user-1", "a@trails.org")
	mustCreateUser(t, s, "user-2", "b@trails.org")

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	n, err = s.CountUsers(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountUsers: got %d, %v", n, err)
	}
}
