package match

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/verdict"
)

func TestLogIsAppendOnlyCopy(t *testing.T) {
	t.Parallel()

	log := NewLog([]Message{{Kind: KindJudge, Text: "Good morning."}})
	log.Append(Message{Kind: KindPlayerCounsel, Text: "Good morning, Your Honor."})

	snapshot := log.Messages()
	snapshot[0].Text = "edited"
	if got, _ := log.Last(); got.Text != "Good morning, Your Honor." {
		t.Fatalf("last = %q", got.Text)
	}
	if log.Messages()[0].Text != "Good morning." {
		t.Fatal("expected log to be isolated from returned copies")
	}
	if log.Len() != 2 {
		t.Fatalf("len = %d, want 2", log.Len())
	}
}

func TestEmptyLogHasNoLast(t *testing.T) {
	t.Parallel()

	if _, ok := NewLog(nil).Last(); ok {
		t.Fatal("expected empty log")
	}
}

func TestNextCombo(t *testing.T) {
	t.Parallel()

	current, best := 0, 0
	steps := []struct {
		strength    casefile.Strength
		wantCurrent int
		wantBest    int
	}{
		{casefile.StrengthStrong, 1, 1},
		{casefile.StrengthStrong, 2, 2},
		{casefile.StrengthMedium, 0, 2},
		{casefile.StrengthStrong, 1, 2},
		{casefile.StrengthWeak, 0, 2},
	}
	for i, step := range steps {
		current, best = NextCombo(current, best, step.strength)
		if current != step.wantCurrent || best != step.wantBest {
			t.Fatalf("step %d: combo = (%d,%d), want (%d,%d)", i, current, best, step.wantCurrent, step.wantBest)
		}
	}
}

func TestApplyProgressAndResult(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	m := Match{ID: "m-1"}
	choices := []Choice{{TurnIndex: 0, ChosenText: "Art. 5", PointsAwarded: 25, Strength: casefile.StrengthStrong, CitedArticles: []string{"Art. 5"}}}
	m.ApplyProgress(Progress{
		Messages:         []Message{{Kind: KindJudge, Text: "Proceed."}},
		Score:            25,
		Choices:          choices,
		CurrentTurnIndex: 1,
		ComboCurrent:     1,
		ComboMax:         1,
	}, now)
	choices[0].CitedArticles[0] = "edited"

	if m.Score != ChoicePoints(m.Choices) {
		t.Fatalf("score %d != sum of choices %d", m.Score, ChoicePoints(m.Choices))
	}
	if m.Choices[0].CitedArticles[0] != "Art. 5" {
		t.Fatal("expected choices to be copied")
	}
	if m.Terminal() {
		t.Fatal("match should not be terminal before result")
	}

	m.ApplyResult(Result{Score: 25, Verdict: verdict.Denied, FinalSentenceText: "Denied.", Tips: []string{"Cite more."}}, now)
	if !m.Terminal() {
		t.Fatal("match should be terminal after result")
	}
	want := Match{
		ID:                "m-1",
		CurrentTurnIndex:  1,
		Score:             25,
		Messages:          []Message{{Kind: KindJudge, Text: "Proceed."}},
		Choices:           []Choice{{TurnIndex: 0, ChosenText: "Art. 5", PointsAwarded: 25, Strength: casefile.StrengthStrong, CitedArticles: []string{"Art. 5"}}},
		Verdict:           ptr(verdict.Denied),
		FinalSentenceText: ptr("Denied."),
		ComboCurrent:      1,
		ComboMax:          1,
		Tips:              []string{"Cite more."},
		UpdatedAt:         now,
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("match mismatch (-want +got):\n%s", diff)
	}
}

func ptr[T any](v T) *T { return &v }
