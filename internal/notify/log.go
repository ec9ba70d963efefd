package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/example/lexicon/pkg/models"
)

// LogSink writes notifications to the log. It is used when no delivery
// channel is configured.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink writing to log
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "notify").Logger()}
}

// Notify implements moderation.NotificationSink
func (s *LogSink) Notify(ctx context.Context, n models.Notification) error {
	s.log.Info().
		Str("user_id", n.UserID).
		Str("kind", string(n.Metadata.Kind)).
		Str("entry_id", n.Metadata.EntryID).
		Str("revision_id", n.Metadata.RevisionID).
		Msg(n.Message)
	return nil
}
