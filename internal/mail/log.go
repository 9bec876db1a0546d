package mail

import (
	"context"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
)

// LogTransport writes messages to the log instead of delivering them. It is
// only accepted in development, where the printed body is how a developer
// reads the verification code.
type LogTransport struct {
	log *logger.Logger
}

// NewLogTransport creates a log transport
func NewLogTransport(log *logger.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("template", msg.Template).
		Str("body", msg.Text).
		Msg("Email not delivered (log transport)")
	return nil
}
