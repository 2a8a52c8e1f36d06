package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/traildig/traildig-server/internal/domain"
	domainerrors "github.com/traildig/traildig-server/internal/errors"
	"github.com/traildig/traildig-server/internal/metrics"
	"github.com/traildig/traildig-server/internal/normalize"
	"github.com/traildig/traildig-server/internal/store"
)

const msgTagExists = "Tag with this name already exists."

// TagService manages user-scoped tags. Any user can list and create their own
// tags; renaming and deleting are admin operations.
type TagService struct {
	store   store.Store
	search  *SearchService
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewTagService creates a new tag service. search may be nil.
func NewTagService(store store.Store, search *SearchService, m *metrics.Metrics, logger *slog.Logger) *TagService {
	return &TagService{
		store:   store,
		search:  search,
		metrics: m,
		logger:  orDiscard(logger),
	}
}

// List returns the actor's tags ordered by name descending, each carrying the
// total minutes of the sessions it is attached to.
func (s *TagService) List(ctx context.Context, actorID string) ([]*domain.Tag, error) {
	tags, err := s.store.ListTags(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// Create adds a tag owned by actorID.
func (s *TagService) Create(ctx context.Context, actorID, rawName string) (*domain.Tag, error) {
	name, err := cleanTagName(rawName)
	if err != nil {
		return nil, err
	}

	tag, err := newTag(actorID, name)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateTag(ctx, tag); err != nil {
		if errors.Is(err, store.ErrTagExists) {
			return nil, domainerrors.AlreadyExists(msgTagExists)
		}
		return nil, fmt.Errorf("create tag: %w", err)
	}

	s.metrics.TagsCreated(1)
	s.logger.Info("Tag created", "id", tag.ID, "owner_id", actorID, "name", name)
	return tag, nil
}

// Rename changes a tag's name. Admin only.
func (s *TagService) Rename(ctx context.Context, actor *domain.User, tagID, rawName string) (*domain.Tag, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	name, err := cleanTagName(rawName)
	if err != nil {
		return nil, err
	}

	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	if tag.Name == name {
		return tag, nil
	}

	affected := s.sessionsTagged(ctx, tag)

	tag.Name = name
	tag.Touch()
	if err := s.store.UpdateTag(ctx, tag); err != nil {
		if errors.Is(err, store.ErrTagExists) {
			return nil, domainerrors.AlreadyExists(msgTagExists)
		}
		return nil, translateNotFound(err)
	}

	s.reindex(ctx, affected)
	s.logger.Info("Tag renamed", "id", tag.ID, "name", name, "by", actor.ID)
	return tag, nil
}

// Delete removes a tag and its attachments. Admin only.
func (s *TagService) Delete(ctx context.Context, actor *domain.User, tagID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		return translateNotFound(err)
	}
	affected := s.sessionsTagged(ctx, tag)

	if err := s.store.DeleteTag(ctx, tagID); err != nil {
		return translateNotFound(err)
	}

	s.reindex(ctx, affected)
	s.logger.Info("Tag deleted", "id", tagID, "by", actor.ID)
	return nil
}

// sessionsTagged returns the ids of sessions carrying tag, for reindexing.
func (s *TagService) sessionsTagged(ctx context.Context, tag *domain.Tag) []string {
	if s.search == nil {
		return nil
	}
	sessions, err := s.store.ListWorkSessions(ctx, store.WorkSessionFilter{OwnerID: tag.OwnerID, TagName: tag.Name})
	if err != nil {
		s.logger.Warn("failed to list sessions for tag", "tag_id", tag.ID, "error", err)
		return nil
	}
	ids := make([]string, len(sessions))
	for i, ws := range sessions {
		ids[i] = ws.ID
	}
	return ids
}

// reindex refreshes the search documents of the given sessions after a tag
// change, re-reading them so the new tag names are indexed.
func (s *TagService) reindex(ctx context.Context, sessionIDs []string) {
	if s.search == nil || len(sessionIDs) == 0 {
		return
	}
	sessions, err := s.store.ListWorkSessions(ctx, store.WorkSessionFilter{IDs: sessionIDs})
	if err == nil {
		err = s.search.IndexWorkSessions(ctx, sessions)
	}
	if err != nil {
		s.logger.Warn("failed to reindex sessions after tag change", "count", len(sessionIDs), "error", err)
	}
}

func cleanTagName(raw string) (string, error) {
	name := normalize.TagName(raw)
	if name == "" {
		return "", domainerrors.InvalidField("name", "This field may not be blank.", raw)
	}
	if len([]rune(name)) > maxTagNameLen {
		return "", domainerrors.InvalidField("name", "Ensure this field has no more than 255 characters.", raw)
	}
	return name, nil
}

func requireAdmin(actor *domain.User) error {
	if actor == nil || !actor.IsAdmin() {
		return domainerrors.Forbidden(msgNotOwner)
	}
	return nil
}
