// Package ws serves hearings over WebSocket. Clients send JSON frames of the
// form {type, request_id, payload}; the server answers with acks or error
// frames and pushes a match.state frame after every hearing change.
package ws
