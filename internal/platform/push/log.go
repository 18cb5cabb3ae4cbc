package push

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogProvider logs every message and reports success. It is used in
// development when no real transport is configured.
type LogProvider struct {
	logger zerolog.Logger
}

func NewLogProvider(logger zerolog.Logger) *LogProvider {
	return &LogProvider{logger: logger.With().Str("provider", "log").Logger()}
}

func (p *LogProvider) Send(_ context.Context, msg Message) (string, error) {
	id := uuid.NewString()
	p.logger.Info().
		Str("message_id", id).
		Str("token", truncateToken(msg.Token)).
		Str("title", msg.Title).
		Str("body", msg.Body).
		Interface("data", msg.Data).
		Msg("push message")
	return id, nil
}
