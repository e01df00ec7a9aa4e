package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// LogSender only logs mail. It is used when no transport is configured.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, m Mail) error {
	zctx.From(ctx).Info("Mail not sent, no transport configured",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("html_bytes", len(m.HTML)),
	)
	return nil
}
