package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/traildig/traildig-server/internal/domain"
	"github.com/traildig/traildig-server/internal/store"
)

type workSessionRow struct {
	ID           string         `db:"id"`
	OwnerID      string         `db:"owner_id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	TimeMinutes  int            `db:"time_minutes"`
	NumberPeople int            `db:"number_people"`
	Link         string         `db:"link"`
	OccurredAt   sql.NullString `db:"occurred_at"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
}

const workSessionColumns = `id, owner_id, title, description, time_minutes, number_people,
	link, occurred_at, created_at, updated_at`

func newWorkSessionRow(ws *domain.WorkSession) workSessionRow {
	row := workSessionRow{
		ID:           ws.ID,
		OwnerID:      ws.OwnerID,
		Title:        ws.Title,
		Description:  ws.Description,
		TimeMinutes:  ws.TimeMinutes,
		NumberPeople: ws.NumberPeople,
		Link:         ws.Link,
		CreatedAt:    formatTime(ws.CreatedAt),
		UpdatedAt:    formatTime(ws.UpdatedAt),
	}
	if ws.OccurredAt != nil {
		row.OccurredAt = sql.NullString{String: ws.OccurredAt.String(), Valid: true}
	}
	return row
}

func (r workSessionRow) toDomain() (*domain.WorkSession, error) {
	ws := &domain.WorkSession{
		OwnerID:      r.OwnerID,
		Title:        r.Title,
		Description:  r.Description,
		TimeMinutes:  r.TimeMinutes,
		NumberPeople: r.NumberPeople,
		Link:         r.Link,
		Tags:         []*domain.Tag{},
	}
	ws.ID = r.ID

	var err error
	if ws.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if ws.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if r.OccurredAt.Valid {
		at, err := domain.ParseNaiveTime(r.OccurredAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at: %w", err)
		}
		ws.OccurredAt = &at
	}
	return ws, nil
}

// GetWorkSession retrieves a work session with its tags.
func (s *Store) GetWorkSession(ctx context.Context, id string) (*domain.WorkSession, error) {
	return getWorkSession(ctx, s.db, id)
}

// ListWorkSessions returns the sessions matching filter, newest first.
func (s *Store) ListWorkSessions(ctx context.Context, filter store.WorkSessionFilter) ([]*domain.WorkSession, error) {
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return []*domain.WorkSession{}, nil
	}

	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "ws.owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.IDs != nil {
		where = append(where, "ws.id IN (?)")
		args = append(args, filter.IDs)
	}
	if filter.TagName != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM work_session_tags wst
			JOIN tags t ON t.id = wst.tag_id
			WHERE wst.work_session_id = ws.id AND t.owner_id = ws.owner_id AND t.name = ?)`)
		args = append(args, filter.TagName)
	}

	query := `SELECT ` + prefixColumns("ws", workSessionColumns) + ` FROM work_sessions ws`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ws.created_at DESC, ws.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}

	var rows []workSessionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return withTags(ctx, s.db, rows)
}

// DeleteWorkSession removes a session; its tag attachments go with it.
func (s *Store) DeleteWorkSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM work_sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result, store.ErrWorkSessionNotFound)
}

// GetWorkSession reads a session inside the transaction.
func (t *txStore) GetWorkSession(ctx context.Context, id string) (*domain.WorkSession, error) {
	return getWorkSession(ctx, t.tx, id)
}

// CreateWorkSession inserts the session row. Tags are attached separately.
func (t *txStore) CreateWorkSession(ctx context.Context, ws *domain.WorkSession) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO work_sessions (`+workSessionColumns+`)
		VALUES (:id, :owner_id, :title, :description, :time_minutes, :number_people,
			:link, :occurred_at, :created_at, :updated_at)`,
		newWorkSessionRow(ws))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// UpdateWorkSession rewrites the mutable columns. owner_id and created_at are never written.
func (t *txStore) UpdateWorkSession(ctx context.Context, ws *domain.WorkSession) error {
	result, err := t.tx.NamedExecContext(ctx, `
		UPDATE work_sessions SET
			title = :title,
			description = :description,
			time_minutes = :time_minutes,
			number_people = :number_people,
			link = :link,
			occurred_at = :occurred_at,
			updated_at = :updated_at
		WHERE id = :id`,
		newWorkSessionRow(ws))
	if err != nil {
		return err
	}
	return requireAffected(result, store.ErrWorkSessionNotFound)
}

// SetWorkSessionTags replaces every attachment of the session with tagIDs.
func (t *txStore) SetWorkSessionTags(ctx context.Context, workSessionID string, tagIDs []string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM work_session_tags WHERE work_session_id = ?`, workSessionID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}

	for _, tagID := range tagIDs {
		_, err := t.tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO work_session_tags (work_session_id, tag_id) VALUES (?, ?)`,
			workSessionID, tagID)
		if err != nil {
			return fmt.Errorf("attach tag %s: %w", tagID, err)
		}
	}
	return nil
}

func getWorkSession(ctx context.Context, q sqlx.ExtContext, id string) (*domain.WorkSession, error) {
	var row workSessionRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+workSessionColumns+` FROM work_sessions WHERE id = ?`, id); err != nil {
		return nil, noRows(err, store.ErrWorkSessionNotFound)
	}

	sessions, err := withTags(ctx, q, []workSessionRow{row})
	if err != nil {
		return nil, err
	}
	return sessions[0], nil
}

// withTags converts rows and attaches their tags with one extra query.
func withTags(ctx context.Context, q sqlx.ExtContext, rows []workSessionRow) ([]*domain.WorkSession, error) {
	sessions := make([]*domain.WorkSession, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ws, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, ws)
		ids = append(ids, ws.ID)
	}

	tags, err := tagsForSessions(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for _, ws := range sessions {
		if t, ok := tags[ws.ID]; ok {
			ws.Tags = t
		}
	}
	return sessions, nil
}

// prefixColumns qualifies a comma separated column list with alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
