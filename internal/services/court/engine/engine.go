// Package engine implements the courtroom turn sequencer: it narrates a case,
// suspends on choice turns, scores selections and decides the verdict.
package engine

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
	"github.com/louisbranch/courtroom/internal/random"
	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/domain/narration"
	"github.com/louisbranch/courtroom/internal/services/court/domain/pacing"
	"github.com/louisbranch/courtroom/internal/services/court/domain/verdict"
)

// Persister receives fire-and-forget match writes. Implementations must not
// block.
type Persister interface {
	SaveProgress(p match.Progress)
	SaveResult(r match.Result)
}

// Config wires an Engine.
type Config struct {
	Case casefile.Case
	// Match carries the persisted state. A non-empty message log restores the
	// hearing at CurrentTurnIndex without replaying narration.
	Match     match.Match
	Narrator  *narration.Narrator
	Random    random.Source
	Scheduler pacing.Scheduler
	Pacing    pacing.Config
	Persister Persister
	Clock     func() time.Time
	Logf      func(string, ...any)
}

// Engine is the turn sequencer of one hearing. All methods are safe for
// concurrent use.
type Engine struct {
	mu sync.Mutex

	c         casefile.Case
	m         match.Match
	log       *match.Log
	narrator  *narration.Narrator
	random    random.Source
	pacing    pacing.Config
	persister Persister
	clock     func() time.Time
	logf      func(string, ...any)
	runner    *pacing.Runner

	state        State
	awaiting     int
	disposed     bool
	err          error
	finalSaveErr error
	persistedLen int
	version      uint64

	changed chan struct{}
	done    chan struct{}
}

// New builds an engine, restoring persisted progress when present.
func New(cfg Config) (*Engine, error) {
	if cfg.Match.CaseID != "" && cfg.Case.ID != "" && cfg.Match.CaseID != cfg.Case.ID {
		return nil, fmt.Errorf("match %s belongs to case %s, not %s", cfg.Match.ID, cfg.Match.CaseID, cfg.Case.ID)
	}
	if cfg.Narrator == nil {
		cfg.Narrator = narration.New(nil, cfg.Case, "")
	}
	if cfg.Random == nil {
		source, err := random.NewSource()
		if err != nil {
			return nil, err
		}
		cfg.Random = source
	}
	if cfg.Pacing.ChunkLimit <= 0 {
		cfg.Pacing.ChunkLimit = pacing.DefaultChunkLimit
	}
	if cfg.Persister == nil {
		cfg.Persister = discardPersister{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}

	e := &Engine{
		c:         cfg.Case,
		m:         cfg.Match,
		log:       match.NewLog(cfg.Match.Messages),
		narrator:  cfg.Narrator,
		random:    cfg.Random,
		pacing:    cfg.Pacing,
		persister: cfg.Persister,
		clock:     cfg.Clock,
		logf:      cfg.Logf,
		state:     StateNotStarted,
		awaiting:  -1,
		changed:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	e.m.Messages = nil
	e.m.Choices = match.CopyChoices(cfg.Match.Choices)
	e.persistedLen = e.log.Len()
	e.runner = pacing.NewRunner(cfg.Scheduler, &e.mu, nil)

	if e.log.Len() > 0 || e.m.Terminal() {
		e.mu.Lock()
		e.restore()
		e.mu.Unlock()
	}
	return e, nil
}

// Changed delivers a signal after state changes. Signals coalesce; read
// Snapshot for the current state.
func (e *Engine) Changed() <-chan struct{} {
	return e.changed
}

// Done is closed once the engine is disposed.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Start begins the hearing. It is a no-op once the hearing has started.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return disposedError()
	}
	switch e.state {
	case StateFailed:
		return e.err
	case StateNotStarted:
	default:
		return nil
	}
	if err := e.c.Validate(); err != nil {
		e.fail(err)
		return err
	}

	e.state = StateIntroducing
	e.touch()
	var steps []pacing.Step
	steps = append(steps, e.narrate(match.KindJudge, e.c.JudgeName, e.narrator.Greeting(e.c), 0)...)
	steps = append(steps, e.narrate(match.KindOpponentCounsel, e.c.OpponentName, e.narrator.OpponentIntro(e.c), e.pacing.NarrationDelay)...)
	steps = append(steps, e.narrate(match.KindSystem, "", e.narrator.Substitute(e.c.InitialContext), e.pacing.NarrationDelay)...)
	steps = append(steps, pacing.Step{Run: func() { e.dispatch(e.m.CurrentTurnIndex, false) }})
	e.runner.Enqueue(steps...)
	return nil
}

// SelectOption answers the judge question at turnIndex.
func (e *Engine) SelectOption(turnIndex, optionIndex int) error {
	return e.selectAt(turnIndex, optionIndex, casefile.TurnJudgeQuestion)
}

// SelectEvidence presents one evidence item at turnIndex.
func (e *Engine) SelectEvidence(turnIndex, evidenceIndex int) error {
	return e.selectAt(turnIndex, evidenceIndex, casefile.TurnEvidencePresentation)
}

// Dispose stops pending narration and blocks further appends and writes.
// Writes already handed to the Persister are not recalled.
func (e *Engine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.disposed = true
	e.runner.Stop()
	close(e.done)
}

// Flush plays all pending narration at once, skipping the remaining delays.
func (e *Engine) Flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.runner.Flush()
}

// Disposed reports whether Dispose was called.
func (e *Engine) Disposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		MatchID:           e.m.ID,
		CaseID:            e.c.ID,
		UserID:            e.m.UserID,
		State:             e.state,
		CurrentTurnIndex:  e.m.CurrentTurnIndex,
		TurnCount:         len(e.c.Turns),
		MaxScore:          e.c.EffectiveMaxScore(),
		Score:             e.m.Score,
		Messages:          e.log.Messages(),
		Choices:           match.CopyChoices(e.m.Choices),
		ComboCurrent:      e.m.ComboCurrent,
		ComboMax:          e.m.ComboMax,
		Verdict:           e.m.Verdict,
		FinalSentenceText: e.m.FinalSentenceText,
		PositiveFeedback:  e.m.PositiveFeedback,
		NegativeFeedback:  e.m.NegativeFeedback,
		Tips:              e.m.Tips,
		FinalSaveError:    e.finalSaveErr,
		Err:               e.err,
		Version:           e.version,
	}
	if e.state == StateAwaitingChoice && e.runner.Idle() {
		s.Awaiting = e.awaitingView()
	}
	return s
}

// Progress returns the partial write for the current state, as used when a
// hearing is paused.
func (e *Engine) Progress() match.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress()
}

// Result returns the final write once the hearing is decided.
func (e *Engine) Result() (match.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.m.Verdict == nil {
		return match.Result{}, false
	}
	return e.result(), true
}

// SetFinalSaveError records the outcome of the last final write. A nil err
// clears a previous failure.
func (e *Engine) SetFinalSaveError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finalSaveErr = err
	e.touch()
}

func (e *Engine) selectAt(turnIndex, index int, want casefile.TurnType) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.disposed:
		return disposedError()
	case e.state == StateDone:
		return apperrors.New(apperrors.CodeMatchTerminal, "hearing already decided")
	case e.state == StateFailed:
		return e.err
	case e.state != StateAwaitingChoice || !e.runner.Idle():
		return apperrors.WithMetadata(apperrors.CodeNotAwaitingInput, "hearing is not awaiting input", map[string]string{"state": string(e.state)})
	case turnIndex != e.awaiting:
		return invalidSelection("turn is not awaiting input", turnIndex, index)
	}

	var (
		choice   match.Choice
		reaction string
		rebuttal *string
	)
	switch t := e.c.Turns[turnIndex].(type) {
	case casefile.JudgeQuestion:
		if want != casefile.TurnJudgeQuestion {
			return invalidSelection("turn expects a response option", turnIndex, index)
		}
		if index < 0 || index >= len(t.Options) {
			return invalidSelection("option index out of range", turnIndex, index)
		}
		option := t.Options[index]
		choice = match.Choice{
			TurnIndex:     turnIndex,
			ChosenText:    option.Text,
			PointsAwarded: option.Points,
			Strength:      option.Strength,
			CitedArticles: append([]string(nil), option.CitedArticles...),
		}
		reaction = e.narrator.Reaction(option.Strength, e.random)
		rebuttal = option.OpponentRebuttal
	case casefile.EvidencePresentation:
		if want != casefile.TurnEvidencePresentation {
			return invalidSelection("turn expects an evidence item", turnIndex, index)
		}
		if index < 0 || index >= len(t.Evidence) {
			return invalidSelection("evidence index out of range", turnIndex, index)
		}
		item := t.Evidence[index]
		choice = match.Choice{
			TurnIndex:     turnIndex,
			ChosenText:    item.Name,
			PointsAwarded: item.Points,
			Strength:      casefile.EvidenceStrength(item.Points),
		}
		reaction = e.narrator.EvidenceAck(e.random)
	default:
		return invalidSelection("turn does not accept input", turnIndex, index)
	}

	e.state = StateResolving
	e.awaiting = -1
	e.m.Score += choice.PointsAwarded
	e.m.Choices = append(e.m.Choices, choice)
	e.m.CurrentTurnIndex = turnIndex + 1
	e.m.ComboCurrent, e.m.ComboMax = match.NextCombo(e.m.ComboCurrent, e.m.ComboMax, choice.Strength)
	e.touch()

	var steps []pacing.Step
	steps = append(steps, e.narrate(match.KindPlayerCounsel, e.narrator.Honorific(), e.narrator.Substitute(choice.ChosenText), 0)...)
	steps = append(steps, e.narrate(match.KindJudge, e.c.JudgeName, reaction, e.pacing.ThinkingDelay)...)
	if rebuttal != nil {
		steps = append(steps, e.narrate(match.KindOpponentCounsel, e.c.OpponentName, e.narrator.Substitute(*rebuttal), e.pacing.NarrationDelay)...)
	}
	next := turnIndex + 1
	steps = append(steps, pacing.Step{Run: func() {
		e.advance(next)
		// The partial write waits for the next prompt so that a restored log
		// matches the stored one.
		e.runner.Enqueue(pacing.Step{Run: func() {
			if !e.m.Terminal() {
				e.saveProgress()
			}
		}})
	}})
	e.runner.Enqueue(steps...)
	return nil
}

func (e *Engine) restore() {
	if e.m.Terminal() {
		e.state = StateDone
		return
	}
	if err := e.c.Validate(); err != nil {
		e.fail(err)
		return
	}
	index := e.m.CurrentTurnIndex
	if index < 0 {
		index = 0
	}
	e.dispatch(index, true)
}

func (e *Engine) advance(next int) {
	if e.disposed {
		return
	}
	e.state = StateAdvancing
	e.m.CurrentTurnIndex = next
	e.touch()
	e.dispatch(next, false)
}

// dispatch enters the turn at index, skipping unknown turns.
func (e *Engine) dispatch(index int, restoring bool) {
	for {
		if index >= len(e.c.Turns) {
			e.finalize(nil, restoring)
			return
		}
		e.m.CurrentTurnIndex = index
		switch t := e.c.Turns[index].(type) {
		case casefile.JudgeQuestion, casefile.EvidencePresentation:
			e.state = StateAwaitingChoice
			e.awaiting = index
			e.touch()
			prompt := e.narrator.Substitute(t.Prompt())
			if restoring {
				if !e.logEndsWith(match.KindJudge, prompt) {
					e.runner.Enqueue(e.narrate(match.KindJudge, e.c.JudgeName, prompt, 0)...)
				}
				return
			}
			e.runner.Enqueue(e.narrate(match.KindJudge, e.c.JudgeName, prompt, e.pacing.NarrationDelay)...)
			return
		case casefile.ClosingRemarks:
			e.finalize(&t, restoring)
			return
		default:
			e.logf("court engine: skipping unknown turn type %q at index %d of case %s", t.Type(), index, e.c.ID)
			index++
			e.state = StateAdvancing
			e.touch()
		}
	}
}

func (e *Engine) finalize(closing *casefile.ClosingRemarks, restoring bool) {
	if e.m.Terminal() {
		e.state = StateDone
		e.touch()
		return
	}
	e.state = StateFinalizing
	e.touch()
	var steps []pacing.Step
	if closing != nil && strings.TrimSpace(closing.PromptText) != "" {
		prompt := e.narrator.Substitute(closing.PromptText)
		switch {
		case !restoring:
			steps = e.narrate(match.KindJudge, e.c.JudgeName, prompt, e.pacing.NarrationDelay)
		case !e.logEndsWith(match.KindJudge, prompt):
			steps = e.narrate(match.KindJudge, e.c.JudgeName, prompt, 0)
		}
	}
	steps = append(steps, pacing.Step{Run: e.decide})
	e.runner.Enqueue(steps...)
}

func (e *Engine) decide() {
	if e.m.Terminal() || e.disposed {
		return
	}
	outcome := verdict.Compute(e.m.Score, e.c)
	sentence := e.narrator.Pronouncement(outcome.Verdict, e.c.ExpectedVerdictText)
	v := outcome.Verdict
	e.m.Verdict = &v
	e.m.FinalSentenceText = &sentence
	e.m.PositiveFeedback = outcome.PositiveFeedback
	e.m.NegativeFeedback = outcome.NegativeFeedback
	e.m.Tips = outcome.Tips
	e.state = StateDone
	e.touch()

	if e.log.Len() != e.persistedLen {
		e.saveProgress()
	}
	e.persister.SaveResult(e.result())
}

func (e *Engine) saveProgress() {
	if e.disposed {
		return
	}
	p := e.progress()
	e.persistedLen = len(p.Messages)
	e.persister.SaveProgress(p)
}

func (e *Engine) progress() match.Progress {
	return match.Progress{
		Messages:         e.log.Messages(),
		Score:            e.m.Score,
		Choices:          match.CopyChoices(e.m.Choices),
		CurrentTurnIndex: e.m.CurrentTurnIndex,
		ComboCurrent:     e.m.ComboCurrent,
		ComboMax:         e.m.ComboMax,
	}
}

func (e *Engine) result() match.Result {
	r := match.Result{
		Score:            e.m.Score,
		Verdict:          *e.m.Verdict,
		PositiveFeedback: append([]string(nil), e.m.PositiveFeedback...),
		NegativeFeedback: append([]string(nil), e.m.NegativeFeedback...),
		Tips:             append([]string(nil), e.m.Tips...),
	}
	if e.m.FinalSentenceText != nil {
		r.FinalSentenceText = *e.m.FinalSentenceText
	}
	return r
}

// narrate expands text into paced message steps. The first chunk waits
// first, the rest wait the typing delay. Blank text yields no steps.
func (e *Engine) narrate(kind match.MessageKind, speaker, text string, first time.Duration) []pacing.Step {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	chunks := pacing.Split(text, e.pacing.ChunkLimit)
	steps := make([]pacing.Step, 0, len(chunks))
	for i, chunk := range chunks {
		delay := e.pacing.TypingDelay
		if i == 0 {
			delay = first
		}
		steps = append(steps, pacing.Step{Delay: delay, Run: func() {
			if e.disposed {
				return
			}
			e.log.Append(match.Message{Kind: kind, Text: chunk, Timestamp: e.clock().UTC(), SpeakerName: speaker})
			e.touch()
		}})
	}
	return steps
}

func (e *Engine) logEndsWith(kind match.MessageKind, text string) bool {
	last, ok := e.log.Last()
	if !ok || last.Kind != kind {
		return false
	}
	chunks := pacing.Split(text, e.pacing.ChunkLimit)
	return last.Text == chunks[len(chunks)-1]
}

func (e *Engine) awaitingView() *Awaiting {
	turn := e.c.Turns[e.awaiting]
	view := &Awaiting{
		TurnIndex: e.awaiting,
		Type:      turn.Type(),
		Prompt:    e.narrator.Substitute(turn.Prompt()),
	}
	switch t := turn.(type) {
	case casefile.JudgeQuestion:
		for i, option := range t.Options {
			view.Options = append(view.Options, Option{Index: i, Text: e.narrator.Substitute(option.Text)})
		}
	case casefile.EvidencePresentation:
		for i, item := range t.Evidence {
			view.Options = append(view.Options, Option{Index: i, Text: item.Name, Description: item.Description})
		}
	}
	return view
}

func (e *Engine) fail(err error) {
	e.state = StateFailed
	e.err = err
	e.touch()
	e.logf("court engine: case %s failed: %v", e.c.ID, err)
}

func (e *Engine) touch() {
	e.version++
	select {
	case e.changed <- struct{}{}:
	default:
	}
}

func disposedError() error {
	return apperrors.New(apperrors.CodeSessionDisposed, "session disposed")
}

func invalidSelection(message string, turnIndex, index int) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidSelection, message, map[string]string{
		"turn_index":      fmt.Sprint(turnIndex),
		"selection_index": fmt.Sprint(index),
	})
}

type discardPersister struct{}

func (discardPersister) SaveProgress(match.Progress) {}
func (discardPersister) SaveResult(match.Result)     {}
