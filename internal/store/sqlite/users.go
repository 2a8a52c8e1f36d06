package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/traildig/traildig-server/internal/domain"
	"github.com/traildig/traildig-server/internal/store"
)

// userRow mirrors the users table.
type userRow struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	PasswordHash string         `db:"password_hash"`
	IsRoot       bool           `db:"is_root"`
	Role         string         `db:"role"`
	DisplayName  string         `db:"display_name"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	LastLoginAt  sql.NullString `db:"last_login_at"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
}

const userColumns = `id, email, password_hash, is_root, role, display_name,
	first_name, last_name, last_login_at, created_at, updated_at`

func newUserRow(u *domain.User) userRow {
	return userRow{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsRoot:       u.IsRoot,
		Role:         string(u.Role),
		DisplayName:  u.DisplayName,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LastLoginAt:  nullTimeString(u.LastLoginAt),
		CreatedAt:    formatTime(u.CreatedAt),
		UpdatedAt:    formatTime(u.UpdatedAt),
	}
}

func (r userRow) toDomain() (*domain.User, error) {
	u := &domain.User{
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		IsRoot:       r.IsRoot,
		Role:         domain.Role(r.Role),
		DisplayName:  r.DisplayName,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
	}
	u.ID = r.ID

	var err error
	if u.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if u.LastLoginAt, err = parseNullableTime(r.LastLoginAt); err != nil {
		return nil, fmt.Errorf("parse last_login_at: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new user.
// Returns store.ErrEmailExists if the email is already registered.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :password_hash, :is_root, :role, :display_name,
			:first_name, :last_name, :last_login_at, :created_at, :updated_at)`,
		newUserRow(user))
	if isUniqueViolation(err) {
		return store.ErrEmailExists
	}
	return err
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, noRows(err, store.ErrUserNotFound)
	}
	return row.toDomain()
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	if err != nil {
		return nil, noRows(err, store.ErrUserNotFound)
	}
	return row.toDomain()
}

// UpdateUser performs a full row update.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE users SET
			email = :email,
			password_hash = :password_hash,
			is_root = :is_root,
			role = :role,
			display_name = :display_name,
			first_name = :first_name,
			last_name = :last_name,
			last_login_at = :last_login_at,
			updated_at = :updated_at
		WHERE id = :id`,
		newUserRow(user))
	if isUniqueViolation(err) {
		return store.ErrEmailExists
	}
	if err != nil {
		return err
	}
	return requireAffected(result, store.ErrUserNotFound)
}

// ListUsers returns all users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`); err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(rows))
	for _, r := range rows {
		u, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}
