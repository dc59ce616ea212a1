package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(subj string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subj)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestNATSNotifier_PublishesStateSubject(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATSNotifier(pub, "")
	entryID := uuid.New()

	err := n.Notify(context.Background(), entryID, entry.StateCompleted, "dream image is ready")
	require.NoError(t, err)

	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "dreamlog.entry.completed", pub.subjects[0])

	var got Notification
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, entryID.String(), got.EntryID)
	assert.Equal(t, "COMPLETED", got.State)
	assert.Equal(t, "dream image is ready", got.Message)
	assert.NotEmpty(t, got.OccurredAt)
}

func TestNATSNotifier_CustomPrefix(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATSNotifier(pub, "journal.events")

	err := n.Notify(context.Background(), uuid.New(), entry.StateFailed, "gave up")
	require.NoError(t, err)
	assert.Equal(t, "journal.events.failed", pub.subjects[0])
}

func TestNATSNotifier_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	n := NewNATSNotifier(pub, "")

	err := n.Notify(context.Background(), uuid.New(), entry.StateCompleted, "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dreamlog.entry.completed")
}
