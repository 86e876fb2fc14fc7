package casefile

import (
	"encoding/json"
	"fmt"
	"time"
)

// TurnDocument is the serialized form of a Turn shared by storage and
// import formats.
type TurnDocument struct {
	Order      int              `json:"order" yaml:"order"`
	Type       string           `json:"type" yaml:"type"`
	PromptText string           `json:"promptText" yaml:"promptText"`
	Options    []ResponseOption `json:"options,omitempty" yaml:"options,omitempty"`
	Evidence   []Evidence       `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// Turn decodes the document into its concrete turn type. Unrecognized types
// become UnknownTurn so the hearing can skip them.
func (d TurnDocument) Turn() Turn {
	switch TurnType(d.Type) {
	case TurnJudgeQuestion:
		return JudgeQuestion{Order: d.Order, PromptText: d.PromptText, Options: d.Options}
	case TurnEvidencePresentation:
		return EvidencePresentation{Order: d.Order, PromptText: d.PromptText, Evidence: d.Evidence}
	case TurnClosingRemarks:
		return ClosingRemarks{Order: d.Order, PromptText: d.PromptText}
	default:
		return UnknownTurn{Order: d.Order, Kind: d.Type, PromptText: d.PromptText}
	}
}

// DocumentOf encodes a turn.
func DocumentOf(turn Turn) TurnDocument {
	doc := TurnDocument{
		Order:      turn.Position(),
		Type:       string(turn.Type()),
		PromptText: turn.Prompt(),
	}
	switch t := turn.(type) {
	case JudgeQuestion:
		doc.Options = t.Options
	case EvidencePresentation:
		doc.Evidence = t.Evidence
	}
	return doc
}

// EncodeTurns marshals turns to JSON.
func EncodeTurns(turns []Turn) ([]byte, error) {
	docs := make([]TurnDocument, 0, len(turns))
	for i, turn := range turns {
		if turn == nil {
			return nil, fmt.Errorf("turn %d is nil", i)
		}
		docs = append(docs, DocumentOf(turn))
	}
	return json.Marshal(docs)
}

// DecodeTurns unmarshals turns from JSON.
func DecodeTurns(data []byte) ([]Turn, error) {
	var docs []TurnDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	turns := make([]Turn, 0, len(docs))
	for _, doc := range docs {
		turns = append(turns, doc.Turn())
	}
	return turns, nil
}

type caseDocument struct {
	ID                  string         `json:"id"`
	Area                string         `json:"area,omitempty"`
	Theme               string         `json:"theme,omitempty"`
	Title               string         `json:"title"`
	InitialContext      string         `json:"initialContext"`
	JudgeName           string         `json:"judgeName"`
	JudgeStyle          string         `json:"judgeStyle,omitempty"`
	OpponentName        string         `json:"opponentName"`
	OpponentType        OpponentType   `json:"opponentType"`
	PlayerGender        Gender         `json:"playerGender"`
	Turns               []TurnDocument `json:"turns"`
	ExpectedVerdictText string         `json:"expectedVerdictText,omitempty"`
	MaxScore            int            `json:"maxScore,omitempty"`
	PositiveFeedback    []string       `json:"positiveFeedback,omitempty"`
	NegativeFeedback    []string       `json:"negativeFeedback,omitempty"`
	Tips                []string       `json:"tips,omitempty"`
	Locale              string         `json:"locale,omitempty"`
	CreatedAt           time.Time      `json:"createdAt,omitzero"`
}

// MarshalJSON encodes the case with its turns as tagged documents.
func (c Case) MarshalJSON() ([]byte, error) {
	doc := caseDocument{
		ID:                  c.ID,
		Area:                c.Area,
		Theme:               c.Theme,
		Title:               c.Title,
		InitialContext:      c.InitialContext,
		JudgeName:           c.JudgeName,
		JudgeStyle:          c.JudgeStyle,
		OpponentName:        c.OpponentName,
		OpponentType:        c.OpponentType,
		PlayerGender:        c.PlayerGender,
		Turns:               make([]TurnDocument, 0, len(c.Turns)),
		ExpectedVerdictText: c.ExpectedVerdictText,
		MaxScore:            c.MaxScore,
		PositiveFeedback:    c.PositiveFeedback,
		NegativeFeedback:    c.NegativeFeedback,
		Tips:                c.Tips,
		Locale:              c.Locale,
		CreatedAt:           c.CreatedAt,
	}
	for i, turn := range c.Turns {
		if turn == nil {
			return nil, fmt.Errorf("turn %d is nil", i)
		}
		doc.Turns = append(doc.Turns, DocumentOf(turn))
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a case written by MarshalJSON.
func (c *Case) UnmarshalJSON(data []byte) error {
	var doc caseDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*c = Case{
		ID:                  doc.ID,
		Area:                doc.Area,
		Theme:               doc.Theme,
		Title:               doc.Title,
		InitialContext:      doc.InitialContext,
		JudgeName:           doc.JudgeName,
		JudgeStyle:          doc.JudgeStyle,
		OpponentName:        doc.OpponentName,
		OpponentType:        doc.OpponentType,
		PlayerGender:        doc.PlayerGender,
		ExpectedVerdictText: doc.ExpectedVerdictText,
		MaxScore:            doc.MaxScore,
		PositiveFeedback:    doc.PositiveFeedback,
		NegativeFeedback:    doc.NegativeFeedback,
		Tips:                doc.Tips,
		Locale:              doc.Locale,
		CreatedAt:           doc.CreatedAt,
	}
	if doc.Turns != nil {
		c.Turns = make([]Turn, 0, len(doc.Turns))
		for _, turnDoc := range doc.Turns {
			c.Turns = append(c.Turns, turnDoc.Turn())
		}
	}
	return nil
}
