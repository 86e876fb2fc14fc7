package casefile

// TurnType names an authored turn kind.
type TurnType string

const (
	TurnJudgeQuestion        TurnType = "judgeQuestion"
	TurnEvidencePresentation TurnType = "evidencePresentation"
	TurnClosingRemarks       TurnType = "closingRemarks"
)

// Turn is one step of a case script. The set of implementations is closed:
// JudgeQuestion, EvidencePresentation, ClosingRemarks and UnknownTurn.
type Turn interface {
	Type() TurnType
	Position() int
	Prompt() string
	// AwaitsInput reports whether the hearing suspends on this turn.
	AwaitsInput() bool
	turn()
}

// JudgeQuestion asks the player to pick one of several scored responses.
type JudgeQuestion struct {
	Order      int
	PromptText string
	Options    []ResponseOption
}

// EvidencePresentation asks the player to present one evidence item.
type EvidencePresentation struct {
	Order      int
	PromptText string
	Evidence   []Evidence
}

// ClosingRemarks ends the hearing.
type ClosingRemarks struct {
	Order      int
	PromptText string
}

// UnknownTurn preserves an authored turn whose type is not recognized. The
// hearing skips it.
type UnknownTurn struct {
	Order      int
	Kind       string
	PromptText string
}

func (JudgeQuestion) Type() TurnType        { return TurnJudgeQuestion }
func (EvidencePresentation) Type() TurnType { return TurnEvidencePresentation }
func (ClosingRemarks) Type() TurnType       { return TurnClosingRemarks }
func (t UnknownTurn) Type() TurnType        { return TurnType(t.Kind) }

func (t JudgeQuestion) Position() int        { return t.Order }
func (t EvidencePresentation) Position() int { return t.Order }
func (t ClosingRemarks) Position() int       { return t.Order }
func (t UnknownTurn) Position() int          { return t.Order }

func (t JudgeQuestion) Prompt() string        { return t.PromptText }
func (t EvidencePresentation) Prompt() string { return t.PromptText }
func (t ClosingRemarks) Prompt() string       { return t.PromptText }
func (t UnknownTurn) Prompt() string          { return t.PromptText }

func (JudgeQuestion) AwaitsInput() bool        { return true }
func (EvidencePresentation) AwaitsInput() bool { return true }
func (ClosingRemarks) AwaitsInput() bool       { return false }
func (UnknownTurn) AwaitsInput() bool          { return false }

func (JudgeQuestion) turn()        {}
func (EvidencePresentation) turn() {}
func (ClosingRemarks) turn()       {}
func (UnknownTurn) turn()          {}
