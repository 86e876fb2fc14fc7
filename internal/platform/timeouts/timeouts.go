// Package timeouts defines shared timeout constants used across courtroom
// binaries.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second

// PersistWrite caps a single best-effort match write issued by a session.
const PersistWrite = 3 * time.Second

// ToolCall caps one MCP tool invocation against the hearing orchestrator.
const ToolCall = 10 * time.Second

// GRPCDial caps dialing a courtroom gRPC endpoint, health check included.
const GRPCDial = 2 * time.Second
