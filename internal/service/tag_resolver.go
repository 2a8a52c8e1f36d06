package service

import (
	"context"
	"fmt"

	"github.com/traildig/traildig-server/internal/domain"
	domainerrors "github.com/traildig/traildig-server/internal/errors"
	"github.com/traildig/traildig-server/internal/id"
	"github.com/traildig/traildig-server/internal/metrics"
	"github.com/traildig/traildig-server/internal/normalize"
	"github.com/traildig/traildig-server/internal/store"
)

// TagResolutionMode selects what happens to tag names that do not exist yet.
type TagResolutionMode int

const (
	// TagResolutionStrict rejects unknown names and creates nothing.
	TagResolutionStrict TagResolutionMode = iota
	// TagResolutionLenient creates a tag for each unknown name.
	TagResolutionLenient
)

func (m TagResolutionMode) String() string {
	if m == TagResolutionLenient {
		return "lenient"
	}
	return "strict"
}

// TagResolver turns the tag names of a payload into the owner's tag rows.
// The mode is fixed for the life of the resolver.
type TagResolver struct {
	mode    TagResolutionMode
	metrics *metrics.Metrics
}

// NewTagResolver creates a resolver running in mode.
func NewTagResolver(mode TagResolutionMode, m *metrics.Metrics) *TagResolver {
	return &TagResolver{mode: mode, metrics: m}
}

// Mode returns the configured mode.
func (r *TagResolver) Mode() TagResolutionMode {
	return r.mode
}

// Resolve returns one tag per distinct name in refs, in first-seen order.
// Lookups are scoped to ownerID, so another user's tag is never returned.
// It must run on the same transaction as the session write so a rejection
// persists nothing.
func (r *TagResolver) Resolve(ctx context.Context, tx store.Tx, ownerID string, refs []domain.TagRef) ([]*domain.Tag, error) {
	if len(refs) == 0 {
		return []*domain.Tag{}, nil
	}

	cleaned := make([]domain.TagRef, len(refs))
	for i, ref := range refs {
		name := normalize.TagName(ref.Name)
		if name == "" {
			return nil, domainerrors.InvalidField(fmt.Sprintf("tags[%d].name", i), "This field may not be blank.", ref.Name)
		}
		cleaned[i] = domain.TagRef{Name: name}
	}
	names := domain.TagNames(cleaned)

	existing, err := tx.GetTagsByNames(ctx, ownerID, names)
	if err != nil {
		return nil, fmt.Errorf("look up tags: %w", err)
	}

	tags := make([]*domain.Tag, 0, len(names))
	created := 0
	for _, name := range names {
		if tag, ok := existing[name]; ok {
			tags = append(tags, tag)
			continue
		}

		if r.mode == TagResolutionStrict {
			r.metrics.TagResolutionMissed()
			return nil, domainerrors.InvalidField("tags", fmt.Sprintf("Tag %s does not exist.", name), name)
		}

		tag, err := newTag(ownerID, name)
		if err != nil {
			return nil, err
		}
		if err := tx.CreateTag(ctx, tag); err != nil {
			return nil, fmt.Errorf("create tag %q: %w", name, err)
		}
		tags = append(tags, tag)
		created++
	}

	r.metrics.TagsCreated(created)
	return tags, nil
}

func newTag(ownerID, name string) (*domain.Tag, error) {
	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return nil, fmt.Errorf("generate tag ID: %w", err)
	}
	tag := &domain.Tag{OwnerID: ownerID, Name: name}
	tag.ID = tagID
	tag.InitTimestamps()
	return tag, nil
}
