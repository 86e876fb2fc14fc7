// Package session orchestrates hearings: it loads cases and matches, restores
// or starts the turn sequencer, forwards state changes to an observer and
// writes progress back to storage without blocking the hearing.
package session
