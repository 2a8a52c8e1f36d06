package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/traildig/traildig-server/internal/domain"
	"github.com/traildig/traildig-server/internal/store"
)

type tagRow struct {
	ID        string `db:"id"`
	OwnerID   string `db:"owner_id"`
	Name      string `db:"name"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
	Amount    int    `db:"amount"`
}

// tagSelect loads tags together with the minutes logged against each.
// A tag with no sessions reports 0.
const tagSelect = `SELECT t.id, t.owner_id, t.name, t.created_at, t.updated_at,
	COALESCE((
		SELECT SUM(ws.time_minutes)
		FROM work_session_tags wst
		JOIN work_sessions ws ON ws.id = wst.work_session_id
		WHERE wst.tag_id = t.id
	), 0) AS amount
	FROM tags t`

func (r tagRow) toDomain() (*domain.Tag, error) {
	t := &domain.Tag{
		OwnerID:               r.OwnerID,
		Name:                  r.Name,
		AmountWorkDoneMinutes: r.Amount,
	}
	t.ID = r.ID

	var err error
	if t.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return t, nil
}

// GetTag retrieves a tag by ID.
func (s *Store) GetTag(ctx context.Context, id string) (*domain.Tag, error) {
	var row tagRow
	if err := s.db.GetContext(ctx, &row, tagSelect+` WHERE t.id = ?`, id); err != nil {
		return nil, noRows(err, store.ErrTagNotFound)
	}
	return row.toDomain()
}

// ListTags returns the owner's tags ordered by name descending.
func (s *Store) ListTags(ctx context.Context, ownerID string) ([]*domain.Tag, error) {
	var rows []tagRow
	if err := s.db.SelectContext(ctx, &rows, tagSelect+` WHERE t.owner_id = ? ORDER BY t.name DESC, t.id DESC`, ownerID); err != nil {
		return nil, err
	}

	tags := make([]*domain.Tag, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// CreateTag inserts a tag. Returns store.ErrTagExists if the owner already has one with this name.
func (s *Store) CreateTag(ctx context.Context, tag *domain.Tag) error {
	return createTag(ctx, s.db, tag)
}

// UpdateTag renames a tag.
func (s *Store) UpdateTag(ctx context.Context, tag *domain.Tag) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tags SET name = ?, updated_at = ? WHERE id = ?`,
		tag.Name, formatTime(tag.UpdatedAt), tag.ID)
	if isUniqueViolation(err) {
		return store.ErrTagExists
	}
	if err != nil {
		return err
	}
	return requireAffected(result, store.ErrTagNotFound)
}

// DeleteTag removes a tag and, through the cascade, its attachments.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result, store.ErrTagNotFound)
}

// CreateTag inserts a tag inside the transaction.
func (t *txStore) CreateTag(ctx context.Context, tag *domain.Tag) error {
	return createTag(ctx, t.tx, tag)
}

// GetTagsByNames returns the owner's tags whose names appear in names.
func (t *txStore) GetTagsByNames(ctx context.Context, ownerID string, names []string) (map[string]*domain.Tag, error) {
	found := make(map[string]*domain.Tag, len(names))
	if len(names) == 0 {
		return found, nil
	}

	query, args, err := sqlx.In(tagSelect+` WHERE t.owner_id = ? AND t.name IN (?)`, ownerID, names)
	if err != nil {
		return nil, err
	}

	var rows []tagRow
	if err := t.tx.SelectContext(ctx, &rows, t.tx.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		tag, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		found[tag.Name] = tag
	}
	return found, nil
}

func createTag(ctx context.Context, q sqlx.ExtContext, tag *domain.Tag) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO tags (id, owner_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		tag.ID, tag.OwnerID, tag.Name, formatTime(tag.CreatedAt), formatTime(tag.UpdatedAt))
	if isUniqueViolation(err) {
		return store.ErrTagExists
	}
	return err
}

// tagsForSessions loads the tags attached to each session, ordered by name.
func tagsForSessions(ctx context.Context, q sqlx.ExtContext, sessionIDs []string) (map[string][]*domain.Tag, error) {
	bySession := make(map[string][]*domain.Tag, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return bySession, nil
	}

	query, args, err := sqlx.In(`
		SELECT wst.work_session_id, t.id, t.owner_id, t.name, t.created_at, t.updated_at,
			COALESCE((
				SELECT SUM(ws.time_minutes)
				FROM work_session_tags x
				JOIN work_sessions ws ON ws.id = x.work_session_id
				WHERE x.tag_id = t.id
			), 0) AS amount
		FROM work_session_tags wst
		JOIN tags t ON t.id = wst.tag_id
		WHERE wst.work_session_id IN (?)
		ORDER BY t.name ASC`, sessionIDs)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		WorkSessionID string `db:"work_session_id"`
		tagRow
	}
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}

	for _, r := range rows {
		tag, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		bySession[r.WorkSessionID] = append(bySession[r.WorkSessionID], tag)
	}
	return bySession, nil
}
