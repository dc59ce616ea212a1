// Package notification implements the NotificationPort: a log-only
// notifier for development and a NATS publisher for real deployments.
package notification

import (
	"context"

	"github.com/google/uuid"

	"github.com/kalinpl/dreamlog/internal/application/service"
	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
)

// LogNotifier writes notifications to the application log. Default
// notifier when no broker is configured.
type LogNotifier struct {
	log service.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(log service.Logger) *LogNotifier {
	if log == nil {
		log = service.NopLogger{}
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, entryID uuid.UUID, state entry.ProcessingState, message string) error {
	n.log.Info("entry %s reached %s: %s", entryID, state, message)
	return nil
}
