package mcptools

import (
	"context"
	"sync"

	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/engine"
	"github.com/louisbranch/courtroom/internal/services/court/session"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

// Hearings is the orchestrator surface the tools call.
type Hearings interface {
	ListCases(ctx context.Context, pageSize int, pageToken string) (storage.CasePage, error)
	ListMatches(ctx context.Context, userID string, pageSize int, pageToken string) (storage.MatchPage, error)
	Case(ctx context.Context, caseID string) (casefile.Case, error)
	Match(ctx context.Context, matchID string) (match.Match, error)
	CreateMatch(ctx context.Context, caseID, userID string) (match.Match, error)
	Open(ctx context.Context, matchID string, opts session.OpenOptions) (*session.Session, error)
	Active(matchID string) (*session.Session, bool)
}

// tracked is a session opened by the tool server.
type tracked struct {
	session *session.Session
	changed chan struct{}
}

// sessions keeps the sessions the tool server opened, one per match.
type sessions struct {
	hearings Hearings
	logf     func(string, ...any)

	mu   sync.Mutex
	open map[string]*tracked
}

func newSessions(hearings Hearings, logf func(string, ...any)) *sessions {
	return &sessions{hearings: hearings, logf: logf, open: make(map[string]*tracked)}
}

// acquire returns the tracked session of matchID, opening it when needed.
func (s *sessions) acquire(ctx context.Context, matchID string) (*tracked, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.open[matchID]; ok {
		select {
		case <-t.session.Done():
			delete(s.open, matchID)
		default:
			return t, nil
		}
	}
	t := &tracked{changed: make(chan struct{}, 1)}
	opened, err := s.hearings.Open(ctx, matchID, session.OpenOptions{
		Observer: func(engine.Snapshot) {
			select {
			case t.changed <- struct{}{}:
			default:
			}
		},
		OnPersistError: func(kind session.WriteKind, err error) {
			s.logf("court mcp: %s write for match %s failed: %v", kind, matchID, err)
		},
	})
	if err != nil {
		return nil, err
	}
	t.session = opened
	s.open[matchID] = t
	return t, nil
}

// release pauses and forgets the session of matchID. It reports whether the
// tool server had one.
func (s *sessions) release(ctx context.Context, matchID string) (bool, error) {
	s.mu.Lock()
	t, ok := s.open[matchID]
	delete(s.open, matchID)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, t.session.Pause(ctx)
}

// closeAll pauses every tracked session.
func (s *sessions) closeAll() {
	s.mu.Lock()
	open := s.open
	s.open = make(map[string]*tracked)
	s.mu.Unlock()
	for matchID, t := range open {
		if err := t.session.Pause(context.Background()); err != nil {
			s.logf("court mcp: pause match %s: %v", matchID, err)
		}
	}
}

// settle waits until the hearing needs input, is decided, or failed, and
// returns that snapshot. A cancelled ctx returns the latest snapshot.
func (t *tracked) settle(ctx context.Context) engine.Snapshot {
	for {
		snapshot := t.session.Snapshot()
		if settled(snapshot) {
			return snapshot
		}
		select {
		case <-t.changed:
		case <-t.session.Done():
			return t.session.Snapshot()
		case <-ctx.Done():
			return t.session.Snapshot()
		}
	}
}

func settled(s engine.Snapshot) bool {
	switch s.State {
	case engine.StateNotStarted, engine.StateAwaitingChoice:
		return true
	}
	return s.State.Terminal()
}
