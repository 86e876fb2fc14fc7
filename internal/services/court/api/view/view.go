// Package view holds the wire shapes shared by the court transports.
package view

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
	"github.com/louisbranch/courtroom/internal/platform/i18n/catalog"
	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/engine"
)

// Error is a client-facing error with a localized message.
type Error struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Details   map[string]string `json:"details,omitempty"`
}

// Localizer renders errors in one locale.
type Localizer struct {
	bundle *catalog.Bundle
	locale string
}

// NewLocalizer returns a localizer for locale. A nil bundle uses the
// embedded catalog.
func NewLocalizer(bundle *catalog.Bundle, locale string) Localizer {
	if bundle == nil {
		bundle = catalog.Default()
	}
	return Localizer{bundle: bundle, locale: bundle.Resolve(locale)}
}

// Locale returns the resolved locale.
func (l Localizer) Locale() string {
	return l.locale
}

// Error converts err. Errors without a code render as UNKNOWN.
func (l Localizer) Error(err error) *Error {
	if err == nil {
		return nil
	}
	code := apperrors.CodeOf(err)
	out := &Error{Code: string(code), Retryable: code.Retryable()}
	if message, ok := l.bundle.Message(l.locale, "errors."+string(code)); ok {
		out.Message = message
	} else {
		out.Message = err.Error()
	}
	var coded *apperrors.Error
	if apperrors.As(err, &coded) && len(coded.Metadata) > 0 {
		out.Details = make(map[string]string, len(coded.Metadata))
		for key, value := range coded.Metadata {
			out.Details[key] = value
		}
	}
	return out
}

// Message is one hearing log line.
type Message struct {
	Kind        string `json:"kind"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
	SpeakerName string `json:"speaker_name,omitempty"`
}

// Choice is one recorded selection.
type Choice struct {
	TurnIndex     int      `json:"turn_index"`
	ChosenText    string   `json:"chosen_text"`
	PointsAwarded int      `json:"points_awarded"`
	Strength      string   `json:"strength"`
	CitedArticles []string `json:"cited_articles,omitempty"`
}

// Option is a selectable answer of the awaited turn.
type Option struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// Awaiting is the input the hearing is suspended on.
type Awaiting struct {
	TurnIndex int      `json:"turn_index"`
	Type      string   `json:"type"`
	Prompt    string   `json:"prompt"`
	Options   []Option `json:"options"`
}

// Hearing is the client view of a hearing snapshot.
type Hearing struct {
	MatchID           string    `json:"match_id"`
	CaseID            string    `json:"case_id"`
	State             string    `json:"state"`
	CurrentTurnIndex  int       `json:"current_turn_index"`
	TurnCount         int       `json:"turn_count"`
	MaxScore          int       `json:"max_score"`
	Score             int       `json:"score"`
	Messages          []Message `json:"messages"`
	Choices           []Choice  `json:"choices"`
	Awaiting          *Awaiting `json:"awaiting,omitempty"`
	ComboCurrent      int       `json:"combo_current"`
	ComboMax          int       `json:"combo_max"`
	Verdict           string    `json:"verdict,omitempty"`
	FinalSentenceText string    `json:"final_sentence_text,omitempty"`
	PositiveFeedback  []string  `json:"positive_feedback,omitempty"`
	NegativeFeedback  []string  `json:"negative_feedback,omitempty"`
	Tips              []string  `json:"tips,omitempty"`
	FinalSaveError    *Error    `json:"final_save_error,omitempty"`
	Error             *Error    `json:"error,omitempty"`
	Version           uint64    `json:"version"`
}

// FromSnapshot converts an engine snapshot.
func FromSnapshot(s engine.Snapshot, l Localizer) Hearing {
	h := Hearing{
		MatchID:          s.MatchID,
		CaseID:           s.CaseID,
		State:            string(s.State),
		CurrentTurnIndex: s.CurrentTurnIndex,
		TurnCount:        s.TurnCount,
		MaxScore:         s.MaxScore,
		Score:            s.Score,
		Messages:         Messages(s.Messages),
		Choices:          Choices(s.Choices),
		ComboCurrent:     s.ComboCurrent,
		ComboMax:         s.ComboMax,
		PositiveFeedback: s.PositiveFeedback,
		NegativeFeedback: s.NegativeFeedback,
		Tips:             s.Tips,
		FinalSaveError:   l.Error(s.FinalSaveError),
		Error:            l.Error(s.Err),
		Version:          s.Version,
	}
	if s.Awaiting != nil {
		awaiting := &Awaiting{
			TurnIndex: s.Awaiting.TurnIndex,
			Type:      string(s.Awaiting.Type),
			Prompt:    s.Awaiting.Prompt,
			Options:   make([]Option, 0, len(s.Awaiting.Options)),
		}
		for _, option := range s.Awaiting.Options {
			awaiting.Options = append(awaiting.Options, Option(option))
		}
		h.Awaiting = awaiting
	}
	if s.Verdict != nil {
		h.Verdict = string(*s.Verdict)
	}
	if s.FinalSentenceText != nil {
		h.FinalSentenceText = *s.FinalSentenceText
	}
	return h
}

// FromMatch converts a stored match that has no open session.
func FromMatch(m match.Match, c casefile.Case) Hearing {
	h := Hearing{
		MatchID:          m.ID,
		CaseID:           m.CaseID,
		State:            string(engine.StateNotStarted),
		CurrentTurnIndex: m.CurrentTurnIndex,
		TurnCount:        len(c.Turns),
		MaxScore:         c.EffectiveMaxScore(),
		Score:            m.Score,
		Messages:         Messages(m.Messages),
		Choices:          Choices(m.Choices),
		ComboCurrent:     m.ComboCurrent,
		ComboMax:         m.ComboMax,
		PositiveFeedback: m.PositiveFeedback,
		NegativeFeedback: m.NegativeFeedback,
		Tips:             m.Tips,
	}
	if m.Verdict != nil {
		h.State = string(engine.StateDone)
		h.Verdict = string(*m.Verdict)
	}
	if m.FinalSentenceText != nil {
		h.FinalSentenceText = *m.FinalSentenceText
	}
	return h
}

// Messages converts log lines.
func Messages(messages []match.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, Message{
			Kind:        string(m.Kind),
			Text:        m.Text,
			Timestamp:   m.Timestamp.UTC().Format(time.RFC3339Nano),
			SpeakerName: m.SpeakerName,
		})
	}
	return out
}

// Choices converts recorded selections.
func Choices(choices []match.Choice) []Choice {
	out := make([]Choice, 0, len(choices))
	for _, c := range choices {
		out = append(out, Choice{
			TurnIndex:     c.TurnIndex,
			ChosenText:    c.ChosenText,
			PointsAwarded: c.PointsAwarded,
			Strength:      string(c.Strength),
			CitedArticles: c.CitedArticles,
		})
	}
	return out
}

// CaseSummary is one listed case.
type CaseSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Area      string `json:"area,omitempty"`
	Theme     string `json:"theme,omitempty"`
	TurnCount int    `json:"turn_count"`
	Locale    string `json:"locale,omitempty"`
}

// CaseSummaries converts listed cases.
func CaseSummaries(summaries []casefile.Summary) []CaseSummary {
	out := make([]CaseSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, CaseSummary{
			ID:        s.ID,
			Title:     strings.TrimSpace(s.Title),
			Area:      s.Area,
			Theme:     s.Theme,
			TurnCount: s.TurnCount,
			Locale:    s.Locale,
		})
	}
	return out
}
