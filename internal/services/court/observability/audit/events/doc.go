// Package events defines canonical court audit event names.
package events

const (
	// MatchStarted is recorded when a hearing leaves the not-started state.
	MatchStarted = "match.started"
	// MatchFinalized is recorded when the verdict is written back.
	MatchFinalized = "match.finalized"
	// MatchPersistFailed is recorded when a progress or result write fails.
	MatchPersistFailed = "match.persist_failed"
	// MatchPaused is recorded when a player leaves a hearing mid-way.
	MatchPaused = "match.paused"
)
