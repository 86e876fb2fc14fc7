// Package verdict maps a final hearing score to a ruling.
package verdict

import "github.com/louisbranch/courtroom/internal/services/court/domain/casefile"

// Verdict is the ruling of a finished hearing.
type Verdict string

const (
	Granted          Verdict = "granted"
	PartiallyGranted Verdict = "partiallyGranted"
	Denied           Verdict = "denied"
)

// Thresholds are absolute scores; they do not scale with Case.MaxScore.
const (
	GrantedThreshold = 70
	PartialThreshold = 50
)

// Valid reports whether v is a known ruling.
func (v Verdict) Valid() bool {
	switch v {
	case Granted, PartiallyGranted, Denied:
		return true
	}
	return false
}

// Of returns the ruling for a final score.
func Of(score int) Verdict {
	switch {
	case score >= GrantedThreshold:
		return Granted
	case score >= PartialThreshold:
		return PartiallyGranted
	default:
		return Denied
	}
}

// Outcome is the verdict plus the feedback copied from the case.
type Outcome struct {
	Score            int
	Verdict          Verdict
	PositiveFeedback []string
	NegativeFeedback []string
	Tips             []string
}

// Compute builds the outcome of a hearing on c that ended at score.
func Compute(score int, c casefile.Case) Outcome {
	return Outcome{
		Score:            score,
		Verdict:          Of(score),
		PositiveFeedback: append([]string(nil), c.PositiveFeedback...),
		NegativeFeedback: append([]string(nil), c.NegativeFeedback...),
		Tips:             append([]string(nil), c.Tips...),
	}
}
