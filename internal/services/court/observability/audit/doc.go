// Package audit contains durable audit writes for court hearing operations.
//
// Audit events record when a match starts, when it is decided and when a
// write-back fails. For distributed tracing, the court service uses package
// `internal/platform/otel`.
package audit
