package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

var errStoreDown = errors.New("store down")

type fakeStore struct {
	mu           sync.Mutex
	cases        map[string]casefile.Case
	matches      map[string]match.Match
	caseGets     int
	failProgress bool
	failResult   bool
	progress     []match.Progress
	results      []match.Result
}

func newFakeStore(cases ...casefile.Case) *fakeStore {
	s := &fakeStore{cases: map[string]casefile.Case{}, matches: map[string]match.Match{}}
	for _, c := range cases {
		s.cases[c.ID] = c
	}
	return s
}

func (s *fakeStore) PutCase(_ context.Context, c casefile.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; ok {
		return storage.ErrAlreadyExists
	}
	s.cases[c.ID] = c
	return nil
}

func (s *fakeStore) GetCase(_ context.Context, id string) (casefile.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caseGets++
	c, ok := s.cases[id]
	if !ok {
		return casefile.Case{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) ListCases(_ context.Context, pageSize int, pageToken string) (storage.CasePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.cases))
	for id := range s.cases {
		if id > pageToken {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	page := storage.CasePage{}
	for _, id := range ids {
		if len(page.Cases) == pageSize {
			page.NextPageToken = page.Cases[pageSize-1].ID
			break
		}
		page.Cases = append(page.Cases, s.cases[id].Summarize())
	}
	return page, nil
}

func (s *fakeStore) CreateMatch(_ context.Context, m match.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return storage.ErrAlreadyExists
	}
	s.matches[m.ID] = m
	return nil
}

func (s *fakeStore) GetMatch(_ context.Context, id string) (match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return match.Match{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *fakeStore) SaveMatchProgress(_ context.Context, id string, p match.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failProgress {
		return errStoreDown
	}
	m, ok := s.matches[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.progress = append(s.progress, p)
	m.ApplyProgress(p, time.Now())
	s.matches[id] = m
	return nil
}

func (s *fakeStore) SaveMatchResult(_ context.Context, id string, r match.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failResult {
		return errStoreDown
	}
	m, ok := s.matches[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.results = append(s.results, r)
	m.ApplyResult(r, time.Now())
	s.matches[id] = m
	return nil
}

func (s *fakeStore) ListMatchesByUser(_ context.Context, userID string, pageSize int, pageToken string) (storage.MatchPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.matches))
	for id, m := range s.matches {
		if m.UserID == userID && id > pageToken {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	page := storage.MatchPage{}
	for _, id := range ids {
		if len(page.Matches) == pageSize {
			page.NextPageToken = page.Matches[pageSize-1].ID
			break
		}
		page.Matches = append(page.Matches, s.matches[id])
	}
	return page, nil
}

func (s *fakeStore) setFailures(progress, result bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failProgress = progress
	s.failResult = result
}

func (s *fakeStore) stored(id string) match.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[id]
}

type fakeAudit struct {
	mu     sync.Mutex
	events []storage.AuditEvent
}

func (a *fakeAudit) AppendAuditEvent(_ context.Context, evt storage.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, evt)
	return nil
}

func (a *fakeAudit) names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, evt := range a.events {
		out = append(out, evt.EventName)
	}
	return out
}
