package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/traildig/traildig-server/internal/domain"
	"github.com/traildig/traildig-server/internal/search"
	"github.com/traildig/traildig-server/internal/store"
)

// searchPageSize is how many hits are fetched from the index per round trip.
const searchPageSize = 500

// SearchService keeps the search index in step with the store and runs
// owner-scoped queries against it.
type SearchService struct {
	index    *search.Index
	store    store.Store
	logger   *slog.Logger
	pageSize int
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.Index, store store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:    index,
		store:    store,
		logger:   orDiscard(logger),
		pageSize: searchPageSize,
	}
}

// SearchWorkSessionIDs returns the ids of every one of ownerID's sessions
// matching q, paging through the index until all matches are collected.
func (s *SearchService) SearchWorkSessionIDs(ctx context.Context, ownerID, q string) ([]string, error) {
	ids := []string{}
	for {
		res, err := s.index.Search(ctx, search.Params{
			Query:   q,
			OwnerID: ownerID,
			Limit:   s.pageSize,
			Offset:  len(ids),
		})
		if err != nil {
			return nil, fmt.Errorf("search work sessions: %w", err)
		}
		ids = append(ids, res.IDs()...)
		if len(res.Hits) == 0 || uint64(len(ids)) >= res.Total {
			return ids, nil
		}
	}
}

// IndexWorkSession adds or replaces the document for ws.
func (s *SearchService) IndexWorkSession(_ context.Context, ws *domain.WorkSession) error {
	if err := s.index.IndexDocument(search.FromWorkSession(ws)); err != nil {
		return fmt.Errorf("index work session: %w", err)
	}
	s.logger.Debug("indexed work session", "id", ws.ID)
	return nil
}

// IndexWorkSessions re-indexes a batch, e.g. every session carrying a renamed tag.
func (s *SearchService) IndexWorkSessions(_ context.Context, sessions []*domain.WorkSession) error {
	docs := make([]*search.Document, len(sessions))
	for i, ws := range sessions {
		docs[i] = search.FromWorkSession(ws)
	}
	if err := s.index.IndexDocuments(docs); err != nil {
		return fmt.Errorf("index work sessions: %w", err)
	}
	return nil
}

// DeleteWorkSession removes a session from the index.
func (s *SearchService) DeleteWorkSession(_ context.Context, id string) error {
	return s.index.DeleteDocument(id)
}

// DocumentCount returns the number of indexed sessions.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// ReindexAll rebuilds the index from every session in the store.
func (s *SearchService) ReindexAll(ctx context.Context) (int, error) {
	s.logger.Info("starting full reindex")

	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	sessions, err := s.store.ListWorkSessions(ctx, store.WorkSessionFilter{})
	if err != nil {
		return 0, fmt.Errorf("list work sessions: %w", err)
	}
	if err := s.IndexWorkSessions(ctx, sessions); err != nil {
		return 0, err
	}

	s.logger.Info("full reindex complete", "total_documents", len(sessions))
	return len(sessions), nil
}
