package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/traildig/traildig-server/internal/domain"
	domainerrors "github.com/traildig/traildig-server/internal/errors"
	"github.com/traildig/traildig-server/internal/id"
	"github.com/traildig/traildig-server/internal/metrics"
	"github.com/traildig/traildig-server/internal/normalize"
	"github.com/traildig/traildig-server/internal/store"
	"github.com/traildig/traildig-server/internal/validation"
)

const (
	msgRequired   = "This field is required."
	msgNotOwner   = "You do not have permission to perform this action."
	msgNotFound   = "Not found."
	maxTagNameLen = 255
)

// WorkSessionInput is a decoded work session payload. A nil field was absent.
// There is no owner field: the owner is always the caller.
type WorkSessionInput struct {
	Title        *string          `json:"title" validate:"omitempty,max=255"`
	Description  *string          `json:"description"`
	TimeMinutes  *int             `json:"time_minutes"`
	NumberPeople *int             `json:"number_people"`
	Link         *string          `json:"link" validate:"omitempty,max=255"`
	OccurredAt   *string          `json:"occurred_at"`
	Tags         *[]domain.TagRef `json:"tags"`
}

// ListWorkSessionsParams filters a listing.
type ListWorkSessionsParams struct {
	Query  string // full-text filter
	Tag    string // tag name filter
	Limit  int
	Offset int
}

// WorkSessionService creates, reads, updates and deletes work sessions on
// behalf of an acting user. Only the owner may read or change a session.
type WorkSessionService struct {
	store     store.Store
	resolver  *TagResolver
	search    *SearchService
	validator *validation.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewWorkSessionService creates a work session service. search may be nil,
// in which case sessions are not indexed and q filters are rejected.
func NewWorkSessionService(
	store store.Store,
	resolver *TagResolver,
	search *SearchService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *WorkSessionService {
	return &WorkSessionService{
		store:     store,
		resolver:  resolver,
		search:    search,
		validator: validation.New(),
		metrics:   m,
		logger:    orDiscard(logger),
	}
}

// List returns the actor's sessions, newest first.
func (s *WorkSessionService) List(ctx context.Context, actorID string, params ListWorkSessionsParams) ([]*domain.WorkSession, error) {
	filter := store.WorkSessionFilter{
		OwnerID: actorID,
		TagName: normalize.TagName(params.Tag),
		Limit:   params.Limit,
		Offset:  params.Offset,
	}

	if params.Query != "" {
		if s.search == nil {
			return nil, domainerrors.InvalidField("q", "Full-text search is disabled.", params.Query)
		}
		ids, err := s.search.SearchWorkSessionIDs(ctx, actorID, params.Query)
		if err != nil {
			return nil, err
		}
		filter.IDs = ids
	}

	sessions, err := s.store.ListWorkSessions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list work sessions: %w", err)
	}
	return sessions, nil
}

// Get returns a session owned by actorID.
func (s *WorkSessionService) Get(ctx context.Context, actorID, sessionID string) (*domain.WorkSession, error) {
	ws, err := s.store.GetWorkSession(ctx, sessionID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	if !ws.IsOwnedBy(actorID) {
		return nil, domainerrors.Forbidden(msgNotOwner)
	}
	return ws, nil
}

// Create stores a new session owned by actorID, resolving its tags in the same
// transaction.
func (s *WorkSessionService) Create(ctx context.Context, actorID string, in WorkSessionInput) (*domain.WorkSession, error) {
	update, err := s.parseInput(in, true)
	if err != nil {
		return nil, err
	}

	sessionID, err := id.Generate(id.PrefixWorkSession)
	if err != nil {
		return nil, fmt.Errorf("generate work session ID: %w", err)
	}

	ws := &domain.WorkSession{OwnerID: actorID}
	ws.ID = sessionID
	ws.InitTimestamps()
	update.Apply(ws)

	var saved *domain.WorkSession
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		var refs []domain.TagRef
		if update.Tags != nil {
			refs = *update.Tags
		}
		tags, err := s.resolver.Resolve(ctx, tx, actorID, refs)
		if err != nil {
			return err
		}
		if err := tx.CreateWorkSession(ctx, ws); err != nil {
			return fmt.Errorf("create work session: %w", err)
		}
		if err := tx.SetWorkSessionTags(ctx, ws.ID, tagIDs(tags)); err != nil {
			return fmt.Errorf("attach tags: %w", err)
		}
		saved, err = tx.GetWorkSession(ctx, ws.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, "create", saved)
	s.logger.Info("Work session created", "id", saved.ID, "owner_id", actorID, "tags", len(saved.Tags))
	return saved, nil
}

// Replace applies a full update (PUT). title, time_minutes and number_people
// must be present; other absent fields keep their stored values.
func (s *WorkSessionService) Replace(ctx context.Context, actorID, sessionID string, in WorkSessionInput) (*domain.WorkSession, error) {
	return s.update(ctx, actorID, sessionID, in, true)
}

// Patch applies a partial update: only present fields change. A present tags
// list, even an empty one, replaces every attachment.
func (s *WorkSessionService) Patch(ctx context.Context, actorID, sessionID string, in WorkSessionInput) (*domain.WorkSession, error) {
	return s.update(ctx, actorID, sessionID, in, false)
}

func (s *WorkSessionService) update(ctx context.Context, actorID, sessionID string, in WorkSessionInput, full bool) (*domain.WorkSession, error) {
	// Ownership is checked before the payload is validated.
	if _, err := s.Get(ctx, actorID, sessionID); err != nil {
		return nil, err
	}

	update, err := s.parseInput(in, full)
	if err != nil {
		return nil, err
	}

	var saved *domain.WorkSession
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		ws, err := tx.GetWorkSession(ctx, sessionID)
		if err != nil {
			return translateNotFound(err)
		}
		if !ws.IsOwnedBy(actorID) {
			return domainerrors.Forbidden(msgNotOwner)
		}

		changed := update.Apply(ws)
		if update.Tags != nil {
			tags, err := s.resolver.Resolve(ctx, tx, actorID, *update.Tags)
			if err != nil {
				return err
			}
			if err := tx.SetWorkSessionTags(ctx, ws.ID, tagIDs(tags)); err != nil {
				return fmt.Errorf("attach tags: %w", err)
			}
			changed = true
		}
		if changed {
			ws.Touch()
			if err := tx.UpdateWorkSession(ctx, ws); err != nil {
				return fmt.Errorf("update work session: %w", err)
			}
		}

		saved, err = tx.GetWorkSession(ctx, ws.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, "update", saved)
	return saved, nil
}

// Delete removes a session owned by actorID.
func (s *WorkSessionService) Delete(ctx context.Context, actorID, sessionID string) error {
	if _, err := s.Get(ctx, actorID, sessionID); err != nil {
		return err
	}

	if err := s.store.DeleteWorkSession(ctx, sessionID); err != nil {
		return translateNotFound(err)
	}

	s.metrics.WorkSessionWritten("delete")
	if s.search != nil {
		if err := s.search.DeleteWorkSession(ctx, sessionID); err != nil {
			s.logger.Warn("failed to remove work session from index", "id", sessionID, "error", err)
		}
	}
	s.logger.Info("Work session deleted", "id", sessionID, "owner_id", actorID)
	return nil
}

// afterWrite records metrics and refreshes the search document.
// Index failures are only logged.
func (s *WorkSessionService) afterWrite(ctx context.Context, op string, ws *domain.WorkSession) {
	s.metrics.WorkSessionWritten(op)
	if s.search == nil {
		return
	}
	if err := s.search.IndexWorkSession(ctx, ws); err != nil {
		s.logger.Warn("failed to index work session", "id", ws.ID, "error", err)
	}
}

// parseInput validates in and converts it to a domain update. When full is
// set, the fields required on create and PUT must be present.
func (s *WorkSessionService) parseInput(in WorkSessionInput, full bool) (*domain.WorkSessionUpdate, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	var fieldErrs []domainerrors.FieldError
	addErr := func(field, msg string, value any) {
		fieldErrs = append(fieldErrs, domainerrors.FieldError{Field: field, Message: msg, Value: value})
	}

	update := &domain.WorkSessionUpdate{
		TimeMinutes:  in.TimeMinutes,
		NumberPeople: in.NumberPeople,
	}

	if in.Title != nil {
		title := normalize.Title(*in.Title)
		if title == "" {
			addErr("title", "This field may not be blank.", *in.Title)
		}
		update.Title = &title
	}
	if full {
		if in.Title == nil {
			addErr("title", msgRequired, nil)
		}
		if in.TimeMinutes == nil {
			addErr("time_minutes", msgRequired, nil)
		}
		if in.NumberPeople == nil {
			addErr("number_people", msgRequired, nil)
		}
	}

	if in.Description != nil {
		description := normalize.Description(*in.Description)
		update.Description = &description
	}
	if in.Link != nil {
		link := normalize.Title(*in.Link)
		update.Link = &link
	}

	if in.OccurredAt != nil {
		at, err := domain.ParseNaiveTime(*in.OccurredAt)
		if err != nil {
			addErr("occurred_at", err.Error(), *in.OccurredAt)
		} else {
			update.OccurredAt = &at
		}
	}

	if in.Tags != nil {
		for i, ref := range *in.Tags {
			if len([]rune(ref.Name)) > maxTagNameLen {
				addErr(fmt.Sprintf("tags[%d].name", i), "Ensure this field has no more than 255 characters.", ref.Name)
			}
		}
		tags := *in.Tags
		update.Tags = &tags
	}

	if len(fieldErrs) > 0 {
		return nil, domainerrors.ValidationWithDetails(validationSummary(fieldErrs), fieldErrs)
	}
	return update, nil
}

func validationSummary(errs []domainerrors.FieldError) string {
	if len(errs) == 1 {
		return errs[0].Field + ": " + errs[0].Message
	}
	return fmt.Sprintf("%s: %s (and %d more)", errs[0].Field, errs[0].Message, len(errs)-1)
}

func tagIDs(tags []*domain.Tag) []string {
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}

// translateNotFound maps store not-found errors to a domain 404 and passes
// everything else through.
func translateNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFound(msgNotFound).WithCause(err)
	}
	return err
}
