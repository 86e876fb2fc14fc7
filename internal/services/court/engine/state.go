package engine

import (
	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/domain/verdict"
)

// State is a turn sequencer state.
type State string

const (
	StateNotStarted     State = "notStarted"
	StateIntroducing    State = "introducing"
	StateAwaitingChoice State = "awaitingChoice"
	StateResolving      State = "resolving"
	StateAdvancing      State = "advancing"
	StateFinalizing     State = "finalizing"
	StateDone           State = "done"
	// StateFailed is terminal: the case could not be played.
	StateFailed State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Option is one selectable answer as shown to the player. Points and
// strength stay hidden.
type Option struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// Awaiting describes the input the hearing is suspended on.
type Awaiting struct {
	TurnIndex int               `json:"turnIndex"`
	Type      casefile.TurnType `json:"type"`
	Prompt    string            `json:"prompt"`
	Options   []Option          `json:"options"`
}

// Snapshot is a consistent copy of the hearing state.
type Snapshot struct {
	MatchID           string
	CaseID            string
	UserID            string
	State             State
	CurrentTurnIndex  int
	TurnCount         int
	MaxScore          int
	Score             int
	Messages          []match.Message
	Choices           []match.Choice
	Awaiting          *Awaiting
	ComboCurrent      int
	ComboMax          int
	Verdict           *verdict.Verdict
	FinalSentenceText *string
	PositiveFeedback  []string
	NegativeFeedback  []string
	Tips              []string
	// FinalSaveError is set while the last final write has failed.
	FinalSaveError error
	// Err is the data-integrity fault that failed the hearing.
	Err     error
	Version uint64
}
