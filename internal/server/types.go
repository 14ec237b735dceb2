// Package server defines shared broadcast types and utility helpers that are
// reused across client, session, and hub logic.
package server

import "strings"

// roomBroadcast encapsulates a payload being fanned out to one room's
// subscribers, including an optional client to exclude from delivery.
type roomBroadcast struct {
	Room    string
	Payload []byte
	Exclude *Client
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
