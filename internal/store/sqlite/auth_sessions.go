package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/traildig/traildig-server/internal/domain"
	"github.com/traildig/traildig-server/internal/store"
)

type authSessionRow struct {
	ID               string `db:"id"`
	UserID           string `db:"user_id"`
	RefreshTokenHash string `db:"refresh_token_hash"`
	ExpiresAt        string `db:"expires_at"`
	CreatedAt        string `db:"created_at"`
	LastSeenAt       string `db:"last_seen_at"`
	IPAddress        string `db:"ip_address"`
	DeviceType       string `db:"device_type"`
	Platform         string `db:"platform"`
	PlatformVersion  string `db:"platform_version"`
	ClientName       string `db:"client_name"`
	ClientVersion    string `db:"client_version"`
	DeviceName       string `db:"device_name"`
}

// authSessionColumns must match the authSessionRow db tags.
const authSessionColumns = `id, user_id, refresh_token_hash, expires_at, created_at, last_seen_at,
	ip_address, device_type, platform, platform_version, client_name, client_version, device_name`

func newAuthSessionRow(s *domain.AuthSession) authSessionRow {
	return authSessionRow{
		ID:               s.ID,
		UserID:           s.UserID,
		RefreshTokenHash: s.RefreshTokenHash,
		ExpiresAt:        formatTime(s.ExpiresAt),
		CreatedAt:        formatTime(s.CreatedAt),
		LastSeenAt:       formatTime(s.LastSeenAt),
		IPAddress:        s.IPAddress,
		DeviceType:       s.DeviceType,
		Platform:         s.Platform,
		PlatformVersion:  s.PlatformVersion,
		ClientName:       s.ClientName,
		ClientVersion:    s.ClientVersion,
		DeviceName:       s.DeviceName,
	}
}

func (r authSessionRow) toDomain() (*domain.AuthSession, error) {
	s := &domain.AuthSession{
		ID:               r.ID,
		UserID:           r.UserID,
		RefreshTokenHash: r.RefreshTokenHash,
		IPAddress:        r.IPAddress,
		DeviceType:       r.DeviceType,
		Platform:         r.Platform,
		PlatformVersion:  r.PlatformVersion,
		ClientName:       r.ClientName,
		ClientVersion:    r.ClientVersion,
		DeviceName:       r.DeviceName,
	}

	var err error
	if s.ExpiresAt, err = parseTime(r.ExpiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if s.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if s.LastSeenAt, err = parseTime(r.LastSeenAt); err != nil {
		return nil, fmt.Errorf("parse last_seen_at: %w", err)
	}
	return s, nil
}

// CreateAuthSession inserts a new login session.
// Returns store.ErrAlreadyExists if the ID or refresh token hash is taken.
func (s *Store) CreateAuthSession(ctx context.Context, session *domain.AuthSession) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO auth_sessions (`+authSessionColumns+`)
		VALUES (:id, :user_id, :refresh_token_hash, :expires_at, :created_at, :last_seen_at,
			:ip_address, :device_type, :platform, :platform_version, :client_name, :client_version, :device_name)`,
		newAuthSessionRow(session))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetAuthSession retrieves a session by ID.
func (s *Store) GetAuthSession(ctx context.Context, id string) (*domain.AuthSession, error) {
	var row authSessionRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+authSessionColumns+` FROM auth_sessions WHERE id = ?`, id); err != nil {
		return nil, noRows(err, store.ErrAuthSessionNotFound)
	}
	return row.toDomain()
}

// GetAuthSessionByRefreshToken retrieves a session by its hashed refresh token.
func (s *Store) GetAuthSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.AuthSession, error) {
	var row authSessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+authSessionColumns+` FROM auth_sessions WHERE refresh_token_hash = ?`, tokenHash)
	if err != nil {
		return nil, noRows(err, store.ErrAuthSessionNotFound)
	}
	return row.toDomain()
}

// UpdateAuthSession performs a full row update on an existing session.
func (s *Store) UpdateAuthSession(ctx context.Context, session *domain.AuthSession) error {
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE auth_sessions SET
			refresh_token_hash = :refresh_token_hash,
			expires_at = :expires_at,
			last_seen_at = :last_seen_at,
			ip_address = :ip_address,
			device_type = :device_type,
			platform = :platform,
			platform_version = :platform_version,
			client_name = :client_name,
			client_version = :client_version,
			device_name = :device_name
		WHERE id = :id`,
		newAuthSessionRow(session))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	return requireAffected(result, store.ErrAuthSessionNotFound)
}

// DeleteAuthSession performs a hard delete of a session by ID.
func (s *Store) DeleteAuthSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result, store.ErrAuthSessionNotFound)
}

// DeleteExpiredAuthSessions deletes all sessions whose expires_at is in the past.
// Returns the number of sessions deleted.
func (s *Store) DeleteExpiredAuthSessions(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at < ?`, formatTime(time.Now()))
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
