package session

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
	"github.com/louisbranch/courtroom/internal/services/court/engine"
	"github.com/louisbranch/courtroom/internal/services/court/observability/audit"
	"github.com/louisbranch/courtroom/internal/services/court/observability/audit/events"
)

// Observer receives a snapshot after every hearing change. Calls for one
// session never overlap. An observer must not call Close or Pause.
type Observer func(engine.Snapshot)

// Session is one open hearing of a match.
type Session struct {
	orch           *Orchestrator
	engine         *engine.Engine
	writer         *Writer
	subject        audit.Subject
	observer       Observer
	onPersistError func(WriteKind, error)

	closeOnce sync.Once
	closed    chan struct{}
	forwarded chan struct{}
}

// MatchID returns the id of the match being played.
func (s *Session) MatchID() string {
	return s.subject.MatchID
}

// Start begins the hearing narration. It is a no-op once started.
func (s *Session) Start(ctx context.Context) (err error) {
	ctx, span := s.orch.tracer.Start(ctx, "court.session.start", trace.WithAttributes(
		attribute.String("court.match_id", s.subject.MatchID),
		attribute.String("court.case_id", s.subject.CaseID),
	))
	defer func() { endSpan(span, err) }()

	before := s.engine.Snapshot().State
	if err := s.engine.Start(); err != nil {
		return err
	}
	if before == engine.StateNotStarted {
		s.emit(ctx, events.MatchStarted, audit.SeverityInfo, nil)
	}
	return nil
}

// SelectOption answers the judge question at turnIndex.
func (s *Session) SelectOption(ctx context.Context, turnIndex, optionIndex int) error {
	return s.selectAt(ctx, "option", turnIndex, optionIndex, s.engine.SelectOption)
}

// SelectEvidence presents the evidence item at evidenceIndex.
func (s *Session) SelectEvidence(ctx context.Context, turnIndex, evidenceIndex int) error {
	return s.selectAt(ctx, "evidence", turnIndex, evidenceIndex, s.engine.SelectEvidence)
}

func (s *Session) selectAt(ctx context.Context, kind string, turnIndex, index int, apply func(int, int) error) (err error) {
	_, span := s.orch.tracer.Start(ctx, "court.session.select", trace.WithAttributes(
		attribute.String("court.match_id", s.subject.MatchID),
		attribute.String("court.selection", kind),
		attribute.Int("court.turn_index", turnIndex),
		attribute.Int("court.selection_index", index),
	))
	defer func() { endSpan(span, err) }()
	return apply(turnIndex, index)
}

// Snapshot returns the current hearing state.
func (s *Session) Snapshot() engine.Snapshot {
	return s.engine.Snapshot()
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Pause stops the hearing and records the pause time with the current
// progress. Pending narration is played at once and queued writes finish
// before the pause is written. A decided or never-started hearing is just
// closed.
func (s *Session) Pause(ctx context.Context) error {
	s.engine.Flush()
	snapshot := s.engine.Snapshot()
	if snapshot.State.Terminal() || len(snapshot.Messages) == 0 {
		s.Close()
		return nil
	}

	s.engine.Dispose()
	s.writer.Close()
	progress := s.engine.Progress()
	pausedAt := s.orch.now()
	progress.PausedAt = &pausedAt

	err := s.orch.matches.SaveMatchProgress(ctx, s.subject.MatchID, progress)
	s.Close()
	if err != nil {
		err = apperrors.WrapWithMetadata(apperrors.CodePersistFailed, "pause write failed", map[string]string{"match_id": s.subject.MatchID}, err)
		s.emit(ctx, events.MatchPersistFailed, audit.SeverityError, map[string]string{"write": "pause"})
		return err
	}
	s.emit(ctx, events.MatchPaused, audit.SeverityInfo, map[string]string{
		"turn_index": strconv.Itoa(progress.CurrentTurnIndex),
	})
	return nil
}

// RetryFinalSave writes the decided result again, synchronously. A success
// clears the final-save error shown in snapshots.
func (s *Session) RetryFinalSave(ctx context.Context) error {
	result, ok := s.engine.Result()
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeNotAwaitingInput, "hearing has no verdict to save", map[string]string{"match_id": s.subject.MatchID})
	}
	err := s.orch.matches.SaveMatchProgress(ctx, s.subject.MatchID, s.engine.Progress())
	if err == nil {
		err = s.orch.matches.SaveMatchResult(ctx, s.subject.MatchID, result)
	}
	if err != nil {
		err = apperrors.WrapWithMetadata(apperrors.CodePersistFailed, "final write failed", map[string]string{"match_id": s.subject.MatchID}, err)
	}
	s.writeCompleted(ctx, WriteResult, err)
	return err
}

// Close disposes the hearing, waits for queued writes and releases the match.
// It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.engine.Dispose()
		s.writer.Close()
		close(s.closed)
		<-s.forwarded
		s.notify()
		s.orch.registry.release(s.subject.MatchID, s)
	})
}

func (s *Session) forward() {
	defer close(s.forwarded)
	for {
		select {
		case <-s.engine.Changed():
			s.notify()
		case <-s.closed:
			return
		}
	}
}

func (s *Session) notify() {
	if s.observer == nil {
		return
	}
	s.observer(s.engine.Snapshot())
}

func (s *Session) writeCompleted(ctx context.Context, kind WriteKind, err error) {
	if kind == WriteResult {
		s.engine.SetFinalSaveError(err)
	}
	if err != nil {
		s.emit(ctx, events.MatchPersistFailed, audit.SeverityError, map[string]string{"write": string(kind)})
		if s.onPersistError != nil {
			s.onPersistError(kind, err)
		}
		return
	}
	if kind == WriteResult {
		attributes := map[string]string{}
		if result, ok := s.engine.Result(); ok {
			attributes["verdict"] = string(result.Verdict)
			attributes["score"] = strconv.Itoa(result.Score)
		}
		s.emit(ctx, events.MatchFinalized, audit.SeverityInfo, attributes)
	}
}

func (s *Session) emit(ctx context.Context, name string, severity audit.Severity, attributes map[string]string) {
	if err := s.orch.audit.EmitFor(context.WithoutCancel(ctx), s.subject, name, severity, attributes); err != nil {
		s.orch.logf("court session: audit %s for match %s: %v", name, s.subject.MatchID, err)
	}
}
