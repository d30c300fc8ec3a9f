package corpus

import (
	"context"
	"log/slog"

	"github.com/errdocs/retrieval-engine/pkg/kafka"
)

// ChangeEvent is published by the document-management layer whenever the
// corpus changes. Any change triggers a full index rebuild; the event payload
// is informational only.
type ChangeEvent struct {
	DocID  string `json:"doc_id"`
	Action string `json:"action"` // created | updated | deleted
}

// Rebuilder is the subset of the engine the change consumer needs.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// HandleChangeEvent returns a Kafka MessageHandler that triggers a rebuild
// for every corpus change. Concurrent events collapse into a single build via
// the controller's singleflight, so a burst of edits costs one rebuild.
func HandleChangeEvent(rb Rebuilder) kafka.MessageHandler {
	logger := slog.Default().With("component", "corpus-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ChangeEvent](value)
		if err != nil {
			logger.Error("failed to decode corpus change event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		logger.Info("corpus changed, rebuilding index",
			"doc_id", event.DocID,
			"action", event.Action,
		)
		if err := rb.Rebuild(ctx); err != nil {
			logger.Error("rebuild after corpus change failed", "error", err)
			return err
		}
		return nil
	}
}
