package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

// Repository reads cases and matches. Cases are immutable, so a fetched
// case is cached for the life of the repository.
type Repository struct {
	cases   storage.CaseStore
	matches storage.MatchStore

	mu    sync.RWMutex
	cache map[string]casefile.Case
}

// NewRepository creates a repository over the given stores.
func NewRepository(cases storage.CaseStore, matches storage.MatchStore) *Repository {
	return &Repository{
		cases:   cases,
		matches: matches,
		cache:   make(map[string]casefile.Case),
	}
}

// Case fetches a playable case. A missing case yields CASE_NOT_FOUND and a
// case with no playable script yields CASE_MALFORMED.
func (r *Repository) Case(ctx context.Context, id string) (casefile.Case, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return casefile.Case{}, apperrors.New(apperrors.CodeInvalidArgument, "case id is required")
	}

	r.mu.RLock()
	c, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	c, err := r.cases.GetCase(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return casefile.Case{}, apperrors.WithMetadata(apperrors.CodeCaseNotFound, "case not found", map[string]string{"case_id": id})
		}
		return casefile.Case{}, err
	}
	if err := c.Validate(); err != nil {
		return casefile.Case{}, err
	}

	r.mu.Lock()
	r.cache[id] = c
	r.mu.Unlock()
	return c, nil
}

// Match fetches a match. A missing match yields MATCH_NOT_FOUND.
func (r *Repository) Match(ctx context.Context, id string) (match.Match, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return match.Match{}, apperrors.New(apperrors.CodeInvalidArgument, "match id is required")
	}
	m, err := r.matches.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return match.Match{}, apperrors.WithMetadata(apperrors.CodeMatchNotFound, "match not found", map[string]string{"match_id": id})
		}
		return match.Match{}, err
	}
	return m, nil
}

// ListCases returns one page of case summaries.
func (r *Repository) ListCases(ctx context.Context, pageSize int, pageToken string) (storage.CasePage, error) {
	return r.cases.ListCases(ctx, pageSize, pageToken)
}
