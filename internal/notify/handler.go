package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cryptocop/internal/broker"
	"github.com/xenking/cryptocop/internal/event"
)

var _ broker.Handler = (*Handler)(nil)

// Handler sends one confirmation per order-completed message. Redelivery
// may send a duplicate.
type Handler struct {
	renderer *Renderer
	sender   Sender
	timeout  time.Duration
}

// NewHandler creates a Handler.
func NewHandler(renderer *Renderer, sender Sender, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Handler{renderer: renderer, sender: sender, timeout: timeout}
}

// Handle implements broker.Handler.
func (h *Handler) Handle(ctx context.Context, msg broker.Message) error {
	e, err := event.Decode(msg.Body)
	if err != nil {
		return errors.Wrap(err, "decode")
	}
	lg := zctx.From(ctx).With(zap.Int64("order_id", e.OrderID))

	mail, err := h.renderer.Render(e)
	if err != nil {
		return errors.Wrap(err, "render")
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.sender.Send(ctx, mail); err != nil {
		return errors.Wrap(err, "send confirmation")
	}

	lg.Info("Order confirmation sent", zap.String("to", mail.To))
	return nil
}

// NewSender builds the transport selected by cfg.
func NewSender(ctx context.Context, cfg Config) (Sender, error) {
	switch t := cfg.Resolve(); t {
	case TransportSendGrid:
		if cfg.SendGrid.APIKey == "" {
			return nil, errors.New("sendgrid api key is empty")
		}
		return NewSendGrid(cfg, &http.Client{
			Timeout:   cfg.Timeout,
			Transport: instrumentedTransport(),
		}), nil
	case TransportSMTP:
		return NewSMTP(cfg)
	case TransportSNS:
		return NewSNS(ctx, cfg)
	case TransportLog:
		return LogSender{}, nil
	default:
		return nil, errors.Errorf("unknown mail transport %q", t)
	}
}
