package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/domain/verdict"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

func strPtr(v string) *string { return &v }

func sampleCase(id string) casefile.Case {
	return casefile.Case{
		ID:             id,
		Area:           "civil",
		Theme:          "lease",
		Title:          "Silva v. Costa",
		InitialContext: "The tenant seeks a rent review.",
		JudgeName:      "Helena Prado",
		OpponentName:   "Marcos Reis",
		OpponentType:   casefile.OpponentPrivateCounsel,
		PlayerGender:   casefile.GenderMasculine,
		Turns: []casefile.Turn{
			casefile.JudgeQuestion{Order: 1, PromptText: "Thesis?", Options: []casefile.ResponseOption{
				{Text: "Art. 19", Points: 30, Strength: casefile.StrengthStrong, CitedArticles: []string{"Art. 19"}, OpponentRebuttal: strPtr("No.")},
			}},
			casefile.ClosingRemarks{Order: 2, PromptText: "Closing."},
		},
		ExpectedVerdictText: "Rent reduced.",
		MaxScore:            100,
		PositiveFeedback:    []string{"Good."},
		Tips:                []string{"Cite more."},
		Locale:              "pt-BR",
		CreatedAt:           time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestPutGetCaseRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	input := sampleCase("case-1")
	if err := store.PutCase(context.Background(), input); err != nil {
		t.Fatalf("put case: %v", err)
	}
	got, err := store.GetCase(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if diff := cmp.Diff(input, got); diff != "" {
		t.Fatalf("case mismatch (-want +got):\n%s", diff)
	}
}

func TestPutCaseReturnsAlreadyExists(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.PutCase(context.Background(), sampleCase("case-1")); err != nil {
		t.Fatalf("put case: %v", err)
	}
	if err := store.PutCase(context.Background(), sampleCase("case-1")); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate put = %v, want ErrAlreadyExists", err)
	}
}

func TestGetCaseNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.GetCase(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}
}

func TestListCasesPaginates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	for i := 1; i <= 3; i++ {
		if err := store.PutCase(context.Background(), sampleCase(fmt.Sprintf("case-%d", i))); err != nil {
			t.Fatalf("put case %d: %v", i, err)
		}
	}
	first, err := store.ListCases(context.Background(), 2, "")
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Cases) != 2 || first.NextPageToken != "case-2" {
		t.Fatalf("first page = %+v", first)
	}
	if first.Cases[0].TurnCount != 2 {
		t.Fatalf("turn count = %d, want 2", first.Cases[0].TurnCount)
	}
	second, err := store.ListCases(context.Background(), 2, first.NextPageToken)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Cases) != 1 || second.Cases[0].ID != "case-3" || second.NextPageToken != "" {
		t.Fatalf("second page = %+v", second)
	}
}

func TestMatchLifecycle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutCase(ctx, sampleCase("case-1")); err != nil {
		t.Fatalf("put case: %v", err)
	}
	created := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if err := store.CreateMatch(ctx, match.Match{ID: "m-1", CaseID: "case-1", UserID: "user-1", CreatedAt: created}); err != nil {
		t.Fatalf("create match: %v", err)
	}
	if err := store.CreateMatch(ctx, match.Match{ID: "m-1", CaseID: "case-1", UserID: "user-1"}); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate match = %v, want ErrAlreadyExists", err)
	}

	fresh, err := store.GetMatch(ctx, "m-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if len(fresh.Messages) != 0 || fresh.Verdict != nil || fresh.PausedAt != nil || !fresh.CreatedAt.Equal(created) {
		t.Fatalf("fresh match = %+v", fresh)
	}

	at := time.Date(2026, time.February, 1, 9, 30, 0, 0, time.UTC)
	paused := at.Add(time.Minute)
	progress := match.Progress{
		Messages:         []match.Message{{Kind: match.KindJudge, Text: "Good morning.", Timestamp: at, SpeakerName: "Helena Prado"}},
		Score:            30,
		Choices:          []match.Choice{{TurnIndex: 0, ChosenText: "Art. 19", PointsAwarded: 30, Strength: casefile.StrengthStrong, CitedArticles: []string{"Art. 19"}}},
		CurrentTurnIndex: 1,
		ComboCurrent:     1,
		ComboMax:         1,
		PausedAt:         &paused,
	}
	if err := store.SaveMatchProgress(ctx, "m-1", progress); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	got, err := store.GetMatch(ctx, "m-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if diff := cmp.Diff(progress.Messages, got.Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(progress.Choices, got.Choices); diff != "" {
		t.Fatalf("choices mismatch (-want +got):\n%s", diff)
	}
	if got.Score != 30 || got.CurrentTurnIndex != 1 || got.ComboMax != 1 || got.PausedAt == nil || !got.PausedAt.Equal(paused) {
		t.Fatalf("progress fields = %+v", got)
	}

	progress.PausedAt = nil
	if err := store.SaveMatchProgress(ctx, "m-1", progress); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	if err := store.SaveMatchResult(ctx, "m-1", match.Result{Score: 30, Verdict: verdict.Denied, FinalSentenceText: "Denied.", Tips: []string{"Cite more."}}); err != nil {
		t.Fatalf("save result: %v", err)
	}
	got, err = store.GetMatch(ctx, "m-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.PausedAt != nil {
		t.Fatal("expected pause to be cleared")
	}
	if got.Verdict == nil || *got.Verdict != verdict.Denied || got.FinalSentenceText == nil || *got.FinalSentenceText != "Denied." {
		t.Fatalf("result fields = %+v", got)
	}
	if diff := cmp.Diff([]string{"Cite more."}, got.Tips); diff != "" {
		t.Fatalf("tips mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveMatchProgressMissingMatch(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.SaveMatchProgress(context.Background(), "missing", match.Progress{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("save missing = %v, want ErrNotFound", err)
	}
	if err := store.SaveMatchResult(context.Background(), "missing", match.Result{Verdict: verdict.Granted}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("save result missing = %v, want ErrNotFound", err)
	}
}

func TestSaveMatchResultRejectsInvalidVerdict(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.SaveMatchResult(context.Background(), "m-1", match.Result{Verdict: "dismissed"}); err == nil {
		t.Fatal("expected invalid verdict error")
	}
}

func TestCreateMatchRequiresExistingCase(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.CreateMatch(context.Background(), match.Match{ID: "m-1", CaseID: "missing", UserID: "u"}); err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestListMatchesByUser(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutCase(ctx, sampleCase("case-1")); err != nil {
		t.Fatalf("put case: %v", err)
	}
	for _, m := range []match.Match{
		{ID: "m-1", CaseID: "case-1", UserID: "ana"},
		{ID: "m-2", CaseID: "case-1", UserID: "bruno"},
		{ID: "m-3", CaseID: "case-1", UserID: "ana"},
	} {
		if err := store.CreateMatch(ctx, m); err != nil {
			t.Fatalf("create %s: %v", m.ID, err)
		}
	}
	page, err := store.ListMatchesByUser(ctx, "ana", 1, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Matches) != 1 || page.Matches[0].ID != "m-1" || page.NextPageToken != "m-1" {
		t.Fatalf("first page = %+v", page)
	}
	page, err = store.ListMatchesByUser(ctx, "ana", 5, page.NextPageToken)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Matches) != 1 || page.Matches[0].ID != "m-3" {
		t.Fatalf("second page = %+v", page)
	}
}

func TestAuditEventsAppendAndList(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"match.started", "match.persist_failed", "match.finalized"} {
		evt := storage.AuditEvent{
			EventName:  name,
			Severity:   "INFO",
			MatchID:    "m-1",
			CaseID:     "case-1",
			UserID:     "ana",
			Attributes: map[string]string{"step": fmt.Sprint(i)},
			Timestamp:  at.Add(time.Duration(i) * time.Second),
		}
		if err := store.AppendAuditEvent(ctx, evt); err != nil {
			t.Fatalf("append %s: %v", name, err)
		}
	}
	if err := store.AppendAuditEvent(ctx, storage.AuditEvent{EventName: "x", Severity: "INFO", MatchID: "other", Timestamp: at}); err != nil {
		t.Fatalf("append other: %v", err)
	}

	page, err := store.ListAuditEvents(ctx, "m-1", 2, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Events) != 2 || page.Events[0].EventName != "match.started" || page.NextPageToken == "" {
		t.Fatalf("first page = %+v", page)
	}
	if page.Events[1].Attributes["step"] != "1" {
		t.Fatalf("attributes = %v", page.Events[1].Attributes)
	}
	page, err = store.ListAuditEvents(ctx, "m-1", 2, page.NextPageToken)
	if err != nil {
		t.Fatalf("list second: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].EventName != "match.finalized" || page.NextPageToken != "" {
		t.Fatalf("second page = %+v", page)
	}
}

func TestAppendAuditEventValidates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.AppendAuditEvent(context.Background(), storage.AuditEvent{Severity: "INFO", Timestamp: time.Now()}); err == nil {
		t.Fatal("expected event name error")
	}
	if err := store.AppendAuditEvent(context.Background(), storage.AuditEvent{EventName: "x", Severity: "INFO"}); err == nil {
		t.Fatal("expected timestamp error")
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "court.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
