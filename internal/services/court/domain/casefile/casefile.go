// Package casefile models authored courtroom cases: the read-only scripts a
// hearing is played against.
package casefile

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
)

// DefaultMaxScore is the nominal best score when a case does not set one.
const DefaultMaxScore = 100

// OpponentType selects how the opposing counsel introduces themself.
type OpponentType string

const (
	OpponentProsecutor     OpponentType = "prosecutor"
	OpponentPrivateCounsel OpponentType = "privateCounsel"
)

// Gender drives honorific substitution for the player counsel.
type Gender string

const (
	GenderMasculine Gender = "masculine"
	GenderFeminine  Gender = "feminine"
)

// Strength is the coarse quality bucket of a response.
type Strength string

const (
	StrengthStrong Strength = "strong"
	StrengthMedium Strength = "medium"
	StrengthWeak   Strength = "weak"
)

// Valid reports whether s is a known bucket.
func (s Strength) Valid() bool {
	switch s {
	case StrengthStrong, StrengthMedium, StrengthWeak:
		return true
	}
	return false
}

// EvidenceStrength buckets an evidence item by the points it awards.
func EvidenceStrength(points int) Strength {
	switch {
	case points >= 10:
		return StrengthStrong
	case points > 0:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}

// ResponseOption is one selectable answer to a judge question.
type ResponseOption struct {
	Text             string   `json:"text" yaml:"text"`
	Points           int      `json:"points" yaml:"points"`
	Strength         Strength `json:"strength" yaml:"strength"`
	CitedArticles    []string `json:"citedArticles,omitempty" yaml:"citedArticles,omitempty"`
	OpponentRebuttal *string  `json:"opponentRebuttal,omitempty" yaml:"opponentRebuttal,omitempty"`
}

// Evidence is one item the player can present during an evidence turn.
type Evidence struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Points      int    `json:"points" yaml:"points"`
}

// Case is an authored hearing script. Cases are never mutated once stored.
type Case struct {
	ID                  string
	Area                string
	Theme               string
	Title               string
	InitialContext      string
	JudgeName           string
	JudgeStyle          string
	OpponentName        string
	OpponentType        OpponentType
	PlayerGender        Gender
	Turns               []Turn
	ExpectedVerdictText string
	MaxScore            int
	PositiveFeedback    []string
	NegativeFeedback    []string
	Tips                []string
	Locale              string
	CreatedAt           time.Time
}

// EffectiveMaxScore returns MaxScore or DefaultMaxScore when unset.
func (c Case) EffectiveMaxScore() int {
	if c.MaxScore <= 0 {
		return DefaultMaxScore
	}
	return c.MaxScore
}

// ChoiceTurns counts the turns that wait for player input.
func (c Case) ChoiceTurns() int {
	n := 0
	for _, turn := range c.Turns {
		if turn.AwaitsInput() {
			n++
		}
	}
	return n
}

// Validate checks the structural integrity a hearing needs to run. Failures
// carry CASE_MALFORMED.
func (c Case) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return apperrors.New(apperrors.CodeCaseMalformed, "case id is required")
	}
	if len(c.Turns) == 0 {
		return apperrors.WithMetadata(apperrors.CodeCaseMalformed, "case has no turns", map[string]string{"case_id": c.ID})
	}
	for i, turn := range c.Turns {
		var err error
		switch t := turn.(type) {
		case nil:
			err = fmt.Errorf("turn is empty")
		case JudgeQuestion:
			if len(t.Options) == 0 {
				err = fmt.Errorf("judge question has no options")
			}
		case EvidencePresentation:
			if len(t.Evidence) == 0 {
				err = fmt.Errorf("evidence presentation has no evidence")
			}
		}
		if err != nil {
			return apperrors.WrapWithMetadata(apperrors.CodeCaseMalformed, "case turn is malformed", map[string]string{
				"case_id":    c.ID,
				"turn_index": fmt.Sprint(i),
			}, err)
		}
	}
	return nil
}

// Summary is the listing view of a case.
type Summary struct {
	ID        string
	Title     string
	Area      string
	Theme     string
	TurnCount int
	Locale    string
	CreatedAt time.Time
}

// Summarize returns the listing view of c.
func (c Case) Summarize() Summary {
	return Summary{
		ID:        c.ID,
		Title:     c.Title,
		Area:      c.Area,
		Theme:     c.Theme,
		TurnCount: len(c.Turns),
		Locale:    c.Locale,
		CreatedAt: c.CreatedAt,
	}
}
