// Package match models one play-through of a case: its message log, recorded
// choices, running score and final ruling.
package match

import (
	"time"

	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/verdict"
)

// MessageKind identifies who speaks a log line.
type MessageKind string

const (
	KindJudge           MessageKind = "judge"
	KindPlayerCounsel   MessageKind = "playerCounsel"
	KindOpponentCounsel MessageKind = "opponentCounsel"
	KindSystem          MessageKind = "system"
)

// Message is one displayed line of the hearing.
type Message struct {
	Kind        MessageKind `json:"kind"`
	Text        string      `json:"text"`
	Timestamp   time.Time   `json:"timestamp"`
	SpeakerName string      `json:"speakerName,omitempty"`
}

// Choice records one player selection. Choices are never edited.
type Choice struct {
	TurnIndex     int               `json:"turnIndex"`
	ChosenText    string            `json:"chosenText"`
	PointsAwarded int               `json:"pointsAwarded"`
	Strength      casefile.Strength `json:"strength"`
	CitedArticles []string          `json:"citedArticles,omitempty"`
}

// Match is the mutable state of one play session.
type Match struct {
	ID                string
	CaseID            string
	UserID            string
	CurrentTurnIndex  int
	Score             int
	Messages          []Message
	Choices           []Choice
	Verdict           *verdict.Verdict
	FinalSentenceText *string
	ComboCurrent      int
	ComboMax          int
	PausedAt          *time.Time
	PositiveFeedback  []string
	NegativeFeedback  []string
	Tips              []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Terminal reports whether the match has a ruling and rejects mutation.
func (m Match) Terminal() bool {
	return m.Verdict != nil
}

// ChoicePoints sums the points of every recorded choice.
func ChoicePoints(choices []Choice) int {
	total := 0
	for _, choice := range choices {
		total += choice.PointsAwarded
	}
	return total
}

// Progress is the partial write issued after each resolved turn. It
// overwrites the stored log, score, choices and index wholesale.
type Progress struct {
	Messages         []Message
	Score            int
	Choices          []Choice
	CurrentTurnIndex int
	ComboCurrent     int
	ComboMax         int
	PausedAt         *time.Time
}

// Result is the final write issued once the hearing is decided.
type Result struct {
	Score             int
	Verdict           verdict.Verdict
	FinalSentenceText string
	PositiveFeedback  []string
	NegativeFeedback  []string
	Tips              []string
}

// ApplyProgress overwrites m with p.
func (m *Match) ApplyProgress(p Progress, at time.Time) {
	m.Messages = CopyMessages(p.Messages)
	m.Score = p.Score
	m.Choices = CopyChoices(p.Choices)
	m.CurrentTurnIndex = p.CurrentTurnIndex
	m.ComboCurrent = p.ComboCurrent
	m.ComboMax = p.ComboMax
	m.PausedAt = p.PausedAt
	m.UpdatedAt = at
}

// ApplyResult records the ruling on m.
func (m *Match) ApplyResult(r Result, at time.Time) {
	v := r.Verdict
	sentence := r.FinalSentenceText
	m.Score = r.Score
	m.Verdict = &v
	m.FinalSentenceText = &sentence
	m.PositiveFeedback = append([]string(nil), r.PositiveFeedback...)
	m.NegativeFeedback = append([]string(nil), r.NegativeFeedback...)
	m.Tips = append([]string(nil), r.Tips...)
	m.UpdatedAt = at
}

// NextCombo advances the strong-answer streak.
func NextCombo(current, best int, strength casefile.Strength) (int, int) {
	if strength != casefile.StrengthStrong {
		return 0, best
	}
	current++
	if current > best {
		best = current
	}
	return current, best
}

// CopyMessages returns an independent copy of messages.
func CopyMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	return append([]Message(nil), messages...)
}

// CopyChoices returns an independent copy of choices.
func CopyChoices(choices []Choice) []Choice {
	if choices == nil {
		return nil
	}
	out := make([]Choice, len(choices))
	for i, choice := range choices {
		choice.CitedArticles = append([]string(nil), choice.CitedArticles...)
		out[i] = choice
	}
	return out
}
