// Package server defines the wire message types exchanged between clients and
// the Roomcast service: incoming action envelopes and the typed server-to-client
// payloads (acknowledgements, errors, system events, membership updates,
// history replays, and live messages).
package server

// Client -> server action names.
const (
	ActionLogin       = "login"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPublish     = "publish"
	ActionLogout      = "logout"
)

// System event names carried by systemMessage.
const (
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventJoin         = "join"
	EventLeave        = "leave"
	EventInfo         = "info"
)

// ClientAction is the envelope for every client -> server message. All action
// payload fields share one struct; unused fields are simply absent on the wire.
type ClientAction struct {
	Action   string   `json:"action"`
	Username string   `json:"username,omitempty"`
	Rooms    []string `json:"rooms,omitempty"`
	Room     string   `json:"room,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// Record is one published message as it appears both in live broadcasts and in
// a room's append-only history log. Records are immutable once appended.
type Record struct {
	Type     string `json:"type"`
	Room     string `json:"room"`
	Username string `json:"username"`
	Message  string `json:"message"`
	TS       int64  `json:"ts"`
}

type okMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

type errorMessage struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Reason string `json:"reason"`
}

type systemMessage struct {
	Type     string   `json:"type"`
	Event    string   `json:"event"`
	Rooms    []string `json:"rooms,omitempty"`
	Room     string   `json:"room,omitempty"`
	Username string   `json:"username,omitempty"`
	Message  string   `json:"message,omitempty"`
}

type roomUpdateMessage struct {
	Type  string   `json:"type"`
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

type historyMessage struct {
	Type     string   `json:"type"`
	Room     string   `json:"room"`
	Messages []Record `json:"messages"`
}

func newOK(action string) okMessage {
	return okMessage{Type: "ok", Action: action}
}

func newError(action, reason string) errorMessage {
	return errorMessage{Type: "error", Action: action, Reason: reason}
}

func newSystem(event string) systemMessage {
	return systemMessage{Type: "system", Event: event}
}
