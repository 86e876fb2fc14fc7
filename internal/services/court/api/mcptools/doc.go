// Package mcptools exposes hearings as MCP tools so agents can list cases,
// create matches and play them turn by turn.
//
// Tool calls that move a hearing forward return once it settles: waiting
// for input, decided, or failed.
package mcptools
