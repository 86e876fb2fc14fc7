package engine

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
	"github.com/louisbranch/courtroom/internal/platform/i18n/catalog"
	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/domain/narration"
	"github.com/louisbranch/courtroom/internal/services/court/domain/pacing"
	"github.com/louisbranch/courtroom/internal/services/court/domain/pacing/pacingtest"
	"github.com/louisbranch/courtroom/internal/services/court/domain/verdict"
)

type fakePersister struct {
	mu       sync.Mutex
	progress []match.Progress
	results  []match.Result
}

func (f *fakePersister) SaveProgress(p match.Progress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, p)
}

func (f *fakePersister) SaveResult(r match.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
}

func (f *fakePersister) lastProgress(t *testing.T) match.Progress {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.progress) == 0 {
		t.Fatal("expected a progress write")
	}
	return f.progress[len(f.progress)-1]
}

type fixedSource int

func (f fixedSource) IntN(n int) int { return int(f) % n }

type logCapture struct {
	mu    sync.Mutex
	lines []string
}

func (l *logCapture) logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func strPtr(v string) *string { return &v }

func question(order int, options ...casefile.ResponseOption) casefile.JudgeQuestion {
	return casefile.JudgeQuestion{Order: order, PromptText: fmt.Sprintf("Question %d, Dr(a).?", order), Options: options}
}

func option(text string, points int, strength casefile.Strength, rebuttal *string) casefile.ResponseOption {
	return casefile.ResponseOption{Text: text, Points: points, Strength: strength, OpponentRebuttal: rebuttal}
}

func newCase(turns ...casefile.Turn) casefile.Case {
	return casefile.Case{
		ID:                  "case-1",
		Title:               "Silva v. Costa",
		InitialContext:      "The tenant asks for a rent review.",
		JudgeName:           "Helena Prado",
		OpponentName:        "Marcos Reis",
		OpponentType:        casefile.OpponentPrivateCounsel,
		PlayerGender:        casefile.GenderFeminine,
		Turns:               turns,
		ExpectedVerdictText: "The rent is reduced.",
		PositiveFeedback:    []string{"Good statute use."},
		NegativeFeedback:    []string{"Weak on facts."},
		Tips:                []string{"Bring receipts."},
		Locale:              "en-US",
	}
}

type harness struct {
	engine    *Engine
	persister *fakePersister
	sched     *pacingtest.Scheduler
	logs      *logCapture
}

func newHarness(t *testing.T, c casefile.Case, m match.Match, cfg pacing.Config) *harness {
	t.Helper()
	h := &harness{persister: &fakePersister{}, sched: pacingtest.New(), logs: &logCapture{}}
	if m.ID == "" {
		m.ID = "match-1"
		m.CaseID = c.ID
	}
	e, err := New(Config{
		Case:      c,
		Match:     m,
		Narrator:  narration.New(catalog.Default(), c, ""),
		Random:    fixedSource(0),
		Scheduler: h.sched,
		Pacing:    cfg,
		Persister: h.persister,
		Clock:     func() time.Time { return time.Date(2026, time.May, 4, 9, 0, 0, 0, time.UTC) },
		Logf:      h.logs.logf,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(e.Dispose)
	h.engine = e
	return h
}

func kinds(messages []match.Message) []match.MessageKind {
	out := make([]match.MessageKind, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Kind)
	}
	return out
}

func TestSingleQuestionWithRebuttal(t *testing.T) {
	t.Parallel()

	c := newCase(question(1, option("Article 19 governs the review.", 30, casefile.StrengthStrong, strPtr("Article 19 does not apply."))))
	h := newHarness(t, c, match.Match{}, pacing.Instant())

	if err := h.engine.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := h.engine.Snapshot()
	if snap.State != StateAwaitingChoice || snap.Awaiting == nil {
		t.Fatalf("state = %s awaiting = %v, want awaiting choice", snap.State, snap.Awaiting)
	}
	if err := h.engine.SelectOption(0, 0); err != nil {
		t.Fatalf("select: %v", err)
	}

	snap = h.engine.Snapshot()
	if snap.Score != 30 {
		t.Fatalf("score = %d, want 30", snap.Score)
	}
	want := []match.MessageKind{
		match.KindJudge,           // greeting
		match.KindOpponentCounsel, // introduction
		match.KindSystem,          // context
		match.KindJudge,           // prompt
		match.KindPlayerCounsel,   // choice
		match.KindJudge,           // reaction
		match.KindOpponentCounsel, // rebuttal
	}
	if diff := cmp.Diff(want, kinds(snap.Messages)); diff != "" {
		t.Fatalf("message kinds mismatch (-want +got):\n%s", diff)
	}
	if got := snap.Messages[3].Text; got != "Question 1, Madam Counsel?" {
		t.Fatalf("prompt = %q, want honorific substituted", got)
	}
	if got := snap.Messages[2].Text; got != c.InitialContext {
		t.Fatalf("context = %q, want verbatim", got)
	}
	if got := snap.Messages[6].Text; got != "Article 19 does not apply." {
		t.Fatalf("rebuttal = %q", got)
	}
	if snap.State != StateDone || snap.Verdict == nil || *snap.Verdict != verdict.Denied {
		t.Fatalf("state = %s verdict = %v, want done/denied", snap.State, snap.Verdict)
	}
	if snap.FinalSentenceText == nil || !strings.HasSuffix(*snap.FinalSentenceText, "The rent is reduced.") {
		t.Fatalf("final sentence = %v", snap.FinalSentenceText)
	}

	progress := h.persister.lastProgress(t)
	if progress.Score != 30 || len(progress.Choices) != 1 || progress.CurrentTurnIndex != 1 || len(progress.Messages) != 7 {
		t.Fatalf("progress = %+v", progress)
	}
	if len(h.persister.results) != 1 {
		t.Fatalf("results = %d, want 1", len(h.persister.results))
	}
	result := h.persister.results[0]
	if result.Verdict != verdict.Denied || result.Score != 30 || result.Tips[0] != "Bring receipts." {
		t.Fatalf("result = %+v", result)
	}
}

func TestTwoQuestionsSumScore(t *testing.T) {
	t.Parallel()

	c := newCase(
		question(1, option("Strong", 25, casefile.StrengthStrong, nil), option("Other", 0, casefile.StrengthWeak, nil)),
		question(2, option("Ok", 5, casefile.StrengthMedium, nil), option("Bad", -10, casefile.StrengthWeak, nil)),
	)
	h := newHarness(t, c, match.Match{}, pacing.Instant())

	if err := h.engine.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.SelectOption(0, 0); err != nil {
		t.Fatalf("select first: %v", err)
	}
	if got := h.engine.Snapshot().CurrentTurnIndex; got != 1 {
		t.Fatalf("index after first = %d, want 1", got)
	}
	if err := h.engine.SelectOption(1, 1); err != nil {
		t.Fatalf("select second: %v", err)
	}
	snap := h.engine.Snapshot()
	if snap.Score != 15 {
		t.Fatalf("score = %d, want 15", snap.Score)
	}
	if snap.Score != match.ChoicePoints(snap.Choices) {
		t.Fatalf("score %d != choice sum %d", snap.Score, match.ChoicePoints(snap.Choices))
	}
	if snap.CurrentTurnIndex != len(snap.Choices) {
		t.Fatalf("index %d != choices %d", snap.CurrentTurnIndex, len(snap.Choices))
	}
	if snap.ComboCurrent != 0 || snap.ComboMax != 1 {
		t.Fatalf("combo = (%d,%d), want (0,1)", snap.ComboCurrent, snap.ComboMax)
	}
}

func TestStrongAnswersGrantVerdict(t *testing.T) {
	t.Parallel()

	c := newCase(
		question(1, option("A", 40, casefile.StrengthStrong, nil)),
		question(2, option("B", 32, casefile.StrengthStrong, nil)),
		casefile.ClosingRemarks{Order: 3, PromptText: "The court will now rule."},
	)
	h := newHarness(t, c, match.Match{}, pacing.Instant())

	mustStart(t, h.engine)
	mustSelect(t, h.engine, 0, 0)
	mustSelect(t, h.engine, 1, 0)

	snap := h.engine.Snapshot()
	if snap.Score != 72 || snap.Verdict == nil || *snap.Verdict != verdict.Granted {
		t.Fatalf("score = %d verdict = %v, want 72/granted", snap.Score, snap.Verdict)
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.Text != "The court will now rule." {
		t.Fatalf("last message = %q, want closing prompt", last.Text)
	}
	if got := h.persister.lastProgress(t); len(got.Messages) != len(snap.Messages) {
		t.Fatalf("final progress has %d messages, want %d", len(got.Messages), len(snap.Messages))
	}
	if snap.ComboMax != 2 {
		t.Fatalf("combo max = %d, want 2", snap.ComboMax)
	}
}

func TestRestoreWithoutReplay(t *testing.T) {
	t.Parallel()

	c := newCase(
		question(1, option("First", 20, casefile.StrengthStrong, nil)),
		question(2, option("Second", 10, casefile.StrengthMedium, nil)),
		question(3, option("Third", 5, casefile.StrengthWeak, nil)),
	)
	first := newHarness(t, c, match.Match{}, pacing.Instant())
	mustStart(t, first.engine)
	mustSelect(t, first.engine, 0, 0)
	saved := first.persister.lastProgress(t)
	first.engine.Dispose()

	stored := match.Match{ID: "match-1", CaseID: c.ID}
	stored.ApplyProgress(saved, time.Time{})

	second := newHarness(t, c, stored, pacing.Instant())
	snap := second.engine.Snapshot()
	if snap.CurrentTurnIndex != 1 || len(snap.Choices) != 1 || snap.Score != 20 {
		t.Fatalf("restored index = %d choices = %d score = %d", snap.CurrentTurnIndex, len(snap.Choices), snap.Score)
	}
	if snap.State != StateAwaitingChoice || snap.Awaiting == nil || snap.Awaiting.TurnIndex != 1 {
		t.Fatalf("restored state = %s awaiting = %+v", snap.State, snap.Awaiting)
	}
	greetings := 0
	for _, m := range snap.Messages {
		if strings.Contains(m.Text, "I am Judge Helena Prado") {
			greetings++
		}
	}
	if greetings != 1 {
		t.Fatalf("greeting count = %d, want 1", greetings)
	}
	if diff := cmp.Diff(saved.Messages, snap.Messages); diff != "" {
		t.Fatalf("restored log differs from stored log (-want +got):\n%s", diff)
	}
	if last := saved.Messages[len(saved.Messages)-1]; last.Text != "Question 2, Madam Counsel?" {
		t.Fatalf("stored log ends with %q, want next prompt", last.Text)
	}
	if err := second.engine.Start(); err != nil {
		t.Fatalf("start after restore should be a no-op: %v", err)
	}
	if got := len(second.engine.Snapshot().Messages); got != len(snap.Messages) {
		t.Fatalf("start after restore appended messages: %d -> %d", len(snap.Messages), got)
	}
}

func TestRestoreSkipsPromptAlreadyInLog(t *testing.T) {
	t.Parallel()

	c := newCase(question(1, option("A", 1, casefile.StrengthWeak, nil)), question(2, option("B", 1, casefile.StrengthWeak, nil)))
	first := newHarness(t, c, match.Match{}, pacing.Instant())
	mustStart(t, first.engine)
	paused := first.engine.Progress()

	stored := match.Match{ID: "match-1", CaseID: c.ID}
	stored.ApplyProgress(paused, time.Time{})
	second := newHarness(t, c, stored, pacing.Instant())

	if diff := cmp.Diff(paused.Messages, second.engine.Snapshot().Messages); diff != "" {
		t.Fatalf("restore changed log (-want +got):\n%s", diff)
	}
}

func TestEmptyTurnsFail(t *testing.T) {
	t.Parallel()

	c := newCase()
	c.Turns = []casefile.Turn{}
	h := newHarness(t, c, match.Match{}, pacing.Instant())

	err := h.engine.Start()
	if !apperrors.HasCode(err, apperrors.CodeCaseMalformed) {
		t.Fatalf("start error = %v, want CASE_MALFORMED", err)
	}
	snap := h.engine.Snapshot()
	if snap.State != StateFailed || len(snap.Messages) != 0 || snap.Score != 0 {
		t.Fatalf("state = %s messages = %d score = %d", snap.State, len(snap.Messages), snap.Score)
	}
	if err := h.engine.Start(); !apperrors.HasCode(err, apperrors.CodeCaseMalformed) {
		t.Fatalf("second start = %v, want same failure", err)
	}
	if len(h.persister.progress) != 0 || len(h.persister.results) != 0 {
		t.Fatal("failed hearing must not persist")
	}
}

func TestBlankNarrationIsSkipped(t *testing.T) {
	t.Parallel()

	c := newCase(
		question(1, option("A", 10, casefile.StrengthMedium, strPtr("  "))),
		casefile.ClosingRemarks{Order: 2, PromptText: ""},
	)
	c.InitialContext = " \n"
	h := newHarness(t, c, match.Match{}, pacing.Instant())

	mustStart(t, h.engine)
	mustSelect(t, h.engine, 0, 0)

	snap := h.engine.Snapshot()
	want := []match.MessageKind{
		match.KindJudge,           // greeting
		match.KindOpponentCounsel, // introduction
		match.KindJudge,           // prompt
		match.KindPlayerCounsel,   // choice
		match.KindJudge,           // reaction
	}
	if diff := cmp.Diff(want, kinds(snap.Messages)); diff != "" {
		t.Fatalf("message kinds mismatch (-want +got):\n%s", diff)
	}
	for i, m := range snap.Messages {
		if strings.TrimSpace(m.Text) == "" {
			t.Fatalf("message %d is blank", i)
		}
	}
}

func TestFlushPlaysResolutionBeforeDispose(t *testing.T) {
	t.Parallel()

	c := newCase(
		question(1, option("A", 10, casefile.StrengthMedium, strPtr("No."))),
		question(2, option("B", 5, casefile.StrengthWeak, nil)),
	)
	cfg := pacing.Config{ThinkingDelay: time.Second, NarrationDelay: time.Second}
	h := newHarness(t, c, match.Match{}, cfg)

	mustStart(t, h.engine)
	h.sched.RunAll()
	mustSelect(t, h.engine, 0, 0)
	h.engine.Flush()

	snap := h.engine.Snapshot()
	if snap.Awaiting == nil || snap.Awaiting.TurnIndex != 1 {
		t.Fatalf("awaiting = %+v, want turn 1", snap.Awaiting)
	}
	tail := snap.Messages[len(snap.Messages)-4:]
	wantTail := []match.MessageKind{match.KindPlayerCounsel, match.KindJudge, match.KindOpponentCounsel, match.KindJudge}
	if diff := cmp.Diff(wantTail, kinds(tail)); diff != "" {
		t.Fatalf("resolution kinds mismatch (-want +got):\n%s", diff)
	}
	if tail[2].Text != "No." {
		t.Fatalf("rebuttal = %q", tail[2].Text)
	}
	if got := h.persister.lastProgress(t); len(got.Messages) != len(snap.Messages) {
		t.Fatalf("progress has %d messages, want %d", len(got.Messages), len(snap.Messages))
	}

	h.engine.Dispose()
	h.sched.RunAll()
	if got := len(h.engine.Snapshot().Messages); got != len(snap.Messages) {
		t.Fatalf("messages after dispose = %d, want %d", got, len(snap.Messages))
	}
}

func TestQuestionWithoutOptionsFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newCase(casefile.JudgeQuestion{Order: 1, PromptText: "?"}), match.Match{}, pacing.Instant())
	if err := h.engine.Start(); !apperrors.HasCode(err, apperrors.CodeCaseMalformed) {
		t.Fatalf("start error = %v, want CASE_MALFORMED", err)
	}
}

func TestInvalidSelectionsDoNotMutate(t *testing.T) {
	t.Parallel()

	c := newCase(
		question(1, option("A", 10, casefile.StrengthMedium, nil)),
		casefile.EvidencePresentation{Order: 2, PromptText: "Evidence?", Evidence: []casefile.Evidence{{Name: "Lease", Points: 12}}},
	)
	h := newHarness(t, c, match.Match{}, pacing.Instant())

	if err := h.engine.SelectOption(0, 0); !apperrors.HasCode(err, apperrors.CodeNotAwaitingInput) {
		t.Fatalf("select before start = %v, want NOT_AWAITING_INPUT", err)
	}
	mustStart(t, h.engine)
	before := h.engine.Snapshot()

	tests := []struct {
		name   string
		call   func() error
		expect apperrors.Code
	}{
		{name: "option out of range", call: func() error { return h.engine.SelectOption(0, 3) }, expect: apperrors.CodeInvalidSelection},
		{name: "negative option", call: func() error { return h.engine.SelectOption(0, -1) }, expect: apperrors.CodeInvalidSelection},
		{name: "wrong turn", call: func() error { return h.engine.SelectOption(1, 0) }, expect: apperrors.CodeInvalidSelection},
		{name: "evidence on question", call: func() error { return h.engine.SelectEvidence(0, 0) }, expect: apperrors.CodeInvalidSelection},
	}
	for _, tt := range tests {
		if err := tt.call(); !apperrors.HasCode(err, tt.expect) {
			t.Fatalf("%s: error = %v, want %s", tt.name, err, tt.expect)
		}
	}
	after := h.engine.Snapshot()
	if after.Score != before.Score || len(after.Messages) != len(before.Messages) || len(after.Choices) != 0 {
		t.Fatal("invalid selection mutated state")
	}
}

func TestEvidenceTurnUsesNeutralAcknowledgement(t *testing.T) {
	t.Parallel()

	c := newCase(casefile.EvidencePresentation{Order: 1, PromptText: "Present evidence.", Evidence: []casefile.Evidence{
		{Name: "Receipts", Description: "Twelve months paid", Points: 12},
		{Name: "Photo", Points: 3},
	}})
	h := newHarness(t, c, match.Match{}, pacing.Instant())
	mustStart(t, h.engine)

	awaiting := h.engine.Snapshot().Awaiting
	if awaiting == nil || awaiting.Type != casefile.TurnEvidencePresentation || len(awaiting.Options) != 2 {
		t.Fatalf("awaiting = %+v", awaiting)
	}
	if err := h.engine.SelectOption(0, 0); !apperrors.HasCode(err, apperrors.CodeInvalidSelection) {
		t.Fatalf("option on evidence turn = %v, want INVALID_SELECTION", err)
	}
	if err := h.engine.SelectEvidence(0, 0); err != nil {
		t.Fatalf("select evidence: %v", err)
	}
	snap := h.engine.Snapshot()
	if snap.Choices[0].Strength != casefile.StrengthStrong || snap.Choices[0].ChosenText != "Receipts" {
		t.Fatalf("choice = %+v", snap.Choices[0])
	}
	if got := snap.Messages[5].Text; got != "The evidence is admitted to the record." {
		t.Fatalf("reaction = %q", got)
	}
}

func TestUnknownTurnIsSkippedAndLogged(t *testing.T) {
	t.Parallel()

	c := newCase(
		casefile.UnknownTurn{Order: 1, Kind: "recess", PromptText: "Short break."},
		question(2, option("A", 10, casefile.StrengthMedium, nil)),
	)
	h := newHarness(t, c, match.Match{}, pacing.Instant())
	mustStart(t, h.engine)

	snap := h.engine.Snapshot()
	if snap.Awaiting == nil || snap.Awaiting.TurnIndex != 1 {
		t.Fatalf("awaiting = %+v, want turn 1", snap.Awaiting)
	}
	if len(h.logs.lines) != 1 || !strings.Contains(h.logs.lines[0], `"recess"`) {
		t.Fatalf("logs = %q", h.logs.lines)
	}
	mustSelect(t, h.engine, 1, 0)
	if got := h.engine.Snapshot().Score; got != 10 {
		t.Fatalf("score = %d, want 10", got)
	}
}

func TestPacedNarrationBlocksInputUntilDrained(t *testing.T) {
	t.Parallel()

	c := newCase(question(1, option("A", 10, casefile.StrengthMedium, nil)))
	c.InitialContext = strings.Repeat("The tenant paid. ", 30)
	cfg := pacing.Config{ChunkLimit: 100, TypingDelay: 100 * time.Millisecond, ThinkingDelay: time.Second, NarrationDelay: 500 * time.Millisecond}
	h := newHarness(t, c, match.Match{}, cfg)

	mustStart(t, h.engine)
	if got := len(h.engine.Snapshot().Messages); got != 1 {
		t.Fatalf("messages right after start = %d, want greeting only", got)
	}
	if err := h.engine.SelectOption(0, 0); !apperrors.HasCode(err, apperrors.CodeNotAwaitingInput) {
		t.Fatalf("select during narration = %v, want NOT_AWAITING_INPUT", err)
	}

	h.sched.RunAll()
	snap := h.engine.Snapshot()
	if snap.Awaiting == nil {
		t.Fatal("expected input to be awaited after narration drains")
	}
	contextChunks := 0
	for _, m := range snap.Messages {
		if m.Kind == match.KindSystem {
			contextChunks++
		}
	}
	if want := len(pacing.Split(c.InitialContext, 100)); contextChunks != want || want < 2 {
		t.Fatalf("context chunks = %d, want %d (>1)", contextChunks, want)
	}

	mustSelect(t, h.engine, 0, 0)
	if got := h.engine.Snapshot().Score; got != 10 {
		t.Fatalf("score right after selection = %d, want 10", got)
	}
	if len(h.persister.progress) != 0 {
		t.Fatal("progress written before resolution finished")
	}
	h.sched.RunAll()
	if got := h.engine.Snapshot().State; got != StateDone {
		t.Fatalf("state = %s, want done", got)
	}
}

func TestDisposeCancelsPendingNarration(t *testing.T) {
	t.Parallel()

	c := newCase(question(1, option("A", 10, casefile.StrengthMedium, nil)))
	cfg := pacing.Config{NarrationDelay: time.Second}
	h := newHarness(t, c, match.Match{}, cfg)

	mustStart(t, h.engine)
	h.engine.Dispose()
	h.sched.RunAll()

	snap := h.engine.Snapshot()
	if len(snap.Messages) != 1 {
		t.Fatalf("messages after dispose = %d, want 1", len(snap.Messages))
	}
	if err := h.engine.Start(); !apperrors.HasCode(err, apperrors.CodeSessionDisposed) {
		t.Fatalf("start after dispose = %v", err)
	}
	if err := h.engine.SelectOption(0, 0); !apperrors.HasCode(err, apperrors.CodeSessionDisposed) {
		t.Fatalf("select after dispose = %v", err)
	}
	select {
	case <-h.engine.Done():
	default:
		t.Fatal("expected done channel to be closed")
	}
}

func TestDisposeDuringResolutionSkipsWrites(t *testing.T) {
	t.Parallel()

	c := newCase(question(1, option("A", 10, casefile.StrengthMedium, strPtr("No."))))
	cfg := pacing.Config{ThinkingDelay: time.Second}
	h := newHarness(t, c, match.Match{}, cfg)

	mustStart(t, h.engine)
	mustSelect(t, h.engine, 0, 0)
	h.engine.Dispose()
	h.sched.RunAll()

	if len(h.persister.progress) != 0 || len(h.persister.results) != 0 {
		t.Fatal("disposed hearing issued writes")
	}
}

func TestTerminalMatchRestoresAsDone(t *testing.T) {
	t.Parallel()

	c := newCase(question(1, option("A", 80, casefile.StrengthStrong, nil)))
	v := verdict.Granted
	sentence := "Granted."
	stored := match.Match{
		ID: "match-1", CaseID: c.ID, Score: 80, CurrentTurnIndex: 1,
		Messages:          []match.Message{{Kind: match.KindJudge, Text: "Hello."}},
		Choices:           []match.Choice{{TurnIndex: 0, PointsAwarded: 80}},
		Verdict:           &v,
		FinalSentenceText: &sentence,
	}
	h := newHarness(t, c, stored, pacing.Instant())

	if err := h.engine.Start(); err != nil {
		t.Fatalf("start on done match: %v", err)
	}
	if err := h.engine.SelectOption(0, 0); !apperrors.HasCode(err, apperrors.CodeMatchTerminal) {
		t.Fatalf("select on done match = %v, want MATCH_TERMINAL", err)
	}
	snap := h.engine.Snapshot()
	if snap.State != StateDone || snap.Score != 80 || len(snap.Messages) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(h.persister.results) != 0 {
		t.Fatal("re-finalizing must not write")
	}
}

func TestRestorePastLastTurnFinalizes(t *testing.T) {
	t.Parallel()

	c := newCase(question(1, option("A", 55, casefile.StrengthStrong, nil)))
	stored := match.Match{
		ID: "match-1", CaseID: c.ID, Score: 55, CurrentTurnIndex: 1,
		Messages: []match.Message{{Kind: match.KindJudge, Text: "Hello."}},
		Choices:  []match.Choice{{TurnIndex: 0, PointsAwarded: 55}},
	}
	h := newHarness(t, c, stored, pacing.Instant())

	snap := h.engine.Snapshot()
	if snap.Verdict == nil || *snap.Verdict != verdict.PartiallyGranted {
		t.Fatalf("verdict = %v, want partially granted", snap.Verdict)
	}
	if len(h.persister.results) != 1 {
		t.Fatalf("results = %d, want 1", len(h.persister.results))
	}
}

func TestFinalSaveErrorIsExposed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newCase(question(1, option("A", 1, casefile.StrengthWeak, nil))), match.Match{}, pacing.Instant())
	h.engine.SetFinalSaveError(fmt.Errorf("disk full"))
	if h.engine.Snapshot().FinalSaveError == nil {
		t.Fatal("expected final save error")
	}
	h.engine.SetFinalSaveError(nil)
	if h.engine.Snapshot().FinalSaveError != nil {
		t.Fatal("expected final save error to clear")
	}
}

func TestChangedSignalsAfterMutation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newCase(question(1, option("A", 1, casefile.StrengthWeak, nil))), match.Match{}, pacing.Instant())
	mustStart(t, h.engine)
	select {
	case <-h.engine.Changed():
	default:
		t.Fatal("expected a change signal")
	}
}

func mustStart(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func mustSelect(t *testing.T, e *Engine, turn, index int) {
	t.Helper()
	if err := e.SelectOption(turn, index); err != nil {
		t.Fatalf("select %d/%d: %v", turn, index, err)
	}
}
