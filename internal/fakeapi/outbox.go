package fakeapi

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	MailVerification  = "verification"
	MailPasswordReset = "password_reset"
)

// Message is a mail the fake API would have sent. Secret carries the OTP or
// reset token so tests and local users can complete the flow.
type Message struct {
	To     string    `json:"to"`
	Kind   string    `json:"kind"`
	Secret string    `json:"secret"`
	SentAt time.Time `json:"sent_at"`
}

// Outbox stands in for the mail service.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	logger   *slog.Logger
}

func NewOutbox(logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{logger: logger}
}

func (o *Outbox) Send(msg Message) {
	msg.To = strings.ToLower(msg.To)

	o.mu.Lock()
	o.messages = append(o.messages, msg)
	o.mu.Unlock()

	o.logger.Info("mail queued", "to", msg.To, "kind", msg.Kind)
}

// Latest returns the newest message of kind addressed to to.
func (o *Outbox) Latest(to string, kind string) (Message, bool) {
	to = strings.ToLower(strings.TrimSpace(to))

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, msg := range slices.Backward(o.messages) {
		if msg.To == to && msg.Kind == kind {
			return msg, true
		}
	}
	return Message{}, false
}

func (o *Outbox) Messages(to string) []Message {
	to = strings.ToLower(strings.TrimSpace(to))

	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Message, 0)
	for _, msg := range o.messages {
		if to == "" || msg.To == to {
			out = append(out, msg)
		}
	}
	return out
}
