package pacing

import "time"

// Timer is a pending scheduled task.
type Timer interface {
	// Stop cancels the task. It reports false when the task already ran or
	// was already stopped.
	Stop() bool
}

// Scheduler runs f after d on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules on the wall clock.
type RealScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config holds the delays of a paced hearing. Zero delays play inline.
type Config struct {
	ChunkLimit     int
	TypingDelay    time.Duration
	ThinkingDelay  time.Duration
	NarrationDelay time.Duration
}

// Instant returns a config that plays every step without waiting.
func Instant() Config {
	return Config{ChunkLimit: DefaultChunkLimit}
}
