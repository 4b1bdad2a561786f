package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogChannel writes messages to the log instead of delivering them. It is
// used when no SMTP host is configured.
type LogChannel struct {
	logger *zerolog.Logger
}

func NewLogChannel(logger *zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Deliver(_ context.Context, msg Message) error {
	c.logger.Info().
		Str("type", msg.Type).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg(msg.Body)
	return nil
}
