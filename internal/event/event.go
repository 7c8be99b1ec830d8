package event

type Type string

const (
	TypeSessionInitialized   Type = "session.initialized"
	TypeSessionAuthenticated Type = "session.authenticated"
	TypeSessionAnonymous     Type = "session.anonymous"
	TypeTokenRefreshed       Type = "token.refreshed"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	Seq       uint64 `json:"seq"` // sequence of the flow that produced the event
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
