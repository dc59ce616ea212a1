package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
)

// natsPublisher is the slice of *nats.Conn the notifier uses.
type natsPublisher interface {
	Publish(subj string, data []byte) error
}

var _ natsPublisher = (*nats.Conn)(nil)

// NATSNotifier publishes processing updates to NATS subjects of the
// form dreamlog.entry.<state>. Frontend bridges (SSE, websockets)
// subscribe to these to push progress to users.
type NATSNotifier struct {
	conn    natsPublisher
	subject string // Subject prefix, e.g. "dreamlog.entry"
	now     func() time.Time
}

// Notification is the wire payload published to NATS.
type Notification struct {
	EntryID    string `json:"entry_id"`
	State      string `json:"state"`
	Message    string `json:"message"`
	OccurredAt string `json:"occurred_at"`
}

// NewNATSNotifier creates a notifier publishing under the given subject
// prefix. An empty prefix defaults to "dreamlog.entry".
func NewNATSNotifier(conn natsPublisher, subjectPrefix string) *NATSNotifier {
	if subjectPrefix == "" {
		subjectPrefix = "dreamlog.entry"
	}
	return &NATSNotifier{conn: conn, subject: subjectPrefix, now: time.Now}
}

func (n *NATSNotifier) Notify(ctx context.Context, entryID uuid.UUID, state entry.ProcessingState, message string) error {
	payload, err := json.Marshal(Notification{
		EntryID:    entryID.String(),
		State:      string(state),
		Message:    message,
		OccurredAt: n.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subj := n.subject + "." + strings.ToLower(string(state))
	if err := n.conn.Publish(subj, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subj, err)
	}
	return nil
}
