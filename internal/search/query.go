package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/text/cases"
)

// ErrOwnerRequired is returned by Search when no owner is given.
var ErrOwnerRequired = errors.New("search: owner id is required")

// DefaultLimit caps the number of hits when Params.Limit is zero.
const DefaultLimit = 100

// Params configures a search.
type Params struct {
	Query   string
	OwnerID string

	Limit  int
	Offset int
}

// Result is one page of matches. Total counts every match, not just Hits.
type Result struct {
	Total uint64
	Hits  []Hit
}

// Hit is a single matching work session.
type Hit struct {
	ID    string
	Score float64
}

// IDs returns the hit ids in result order.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}

// Search runs a query restricted to params.OwnerID. Hits are ordered by
// score with the id as tiebreak, so consecutive pages do not overlap.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	if params.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Total: res.Total,
		Hits:  make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		result.Hits = append(result.Hits, Hit{ID: h.ID, Score: h.Score})
	}
	return result, nil
}

// buildQuery ANDs the owner filter with a disjunction over the text fields.
// An empty query text matches every session of the owner.
func buildQuery(params Params) query.Query {
	owner := bleve.NewTermQuery(params.OwnerID)
	owner.SetField("owner_id")

	if params.Query == "" {
		return owner
	}

	title := bleve.NewMatchQuery(params.Query)
	title.SetField("title")
	title.SetBoost(3.0)

	tags := bleve.NewMatchQuery(params.Query)
	tags.SetField("tags")
	tags.SetBoost(2.0)

	description := bleve.NewMatchQuery(params.Query)
	description.SetField("description")

	// Typo tolerance on the title.
	fuzzy := bleve.NewFuzzyQuery(params.Query)
	fuzzy.SetFuzziness(1)
	fuzzy.SetField("title")
	fuzzy.SetBoost(0.8)

	text := []query.Query{title, tags, description, fuzzy}

	// Prefix matching for search-as-you-type, minimum 2 chars.
	if len([]rune(params.Query)) >= 2 {
		prefix := bleve.NewPrefixQuery(cases.Fold().String(params.Query))
		prefix.SetField("title")
		prefix.SetBoost(0.5)
		text = append(text, prefix)
	}

	return bleve.NewConjunctionQuery(owner, bleve.NewDisjunctionQuery(text...))
}
