package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SendGridConfig configures the SendGrid v3 transport.
type SendGridConfig struct {
	APIKey   string `usage:"SendGrid API key"`
	Endpoint string `default:"https://api.sendgrid.com/v3/mail/send"`
}

func instrumentedTransport() http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport)
}

// SendGrid sends mail through the SendGrid v3 HTTP API.
type SendGrid struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	fromEmail string
	fromName  string
}

// NewSendGrid creates a SendGrid sender. A nil client selects an
// instrumented default client.
func NewSendGrid(cfg Config, client *http.Client) *SendGrid {
	if client == nil {
		client = &http.Client{Transport: instrumentedTransport()}
	}
	endpoint := cfg.SendGrid.Endpoint
	if endpoint == "" {
		endpoint = "https://api.sendgrid.com/v3/mail/send"
	}
	return &SendGrid{
		client:    client,
		endpoint:  endpoint,
		apiKey:    cfg.SendGrid.APIKey,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (s *SendGrid) body(m Mail) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("personalizations", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("to", func(e *jx.Encoder) {
						e.Arr(func(e *jx.Encoder) {
							e.Obj(func(e *jx.Encoder) {
								e.Field("email", func(e *jx.Encoder) { e.Str(m.To) })
								if m.ToName != "" {
									e.Field("name", func(e *jx.Encoder) { e.Str(m.ToName) })
								}
							})
						})
					})
				})
			})
		})
		e.Field("from", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("email", func(e *jx.Encoder) { e.Str(s.fromEmail) })
				e.Field("name", func(e *jx.Encoder) { e.Str(s.fromName) })
			})
		})
		e.Field("subject", func(e *jx.Encoder) { e.Str(m.Subject) })
		e.Field("content", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				// text/plain must precede text/html.
				for _, c := range [...]struct{ typ, value string }{
					{"text/plain", m.Text},
					{"text/html", m.HTML},
				} {
					if c.value == "" {
						continue
					}
					e.Obj(func(e *jx.Encoder) {
						e.Field("type", func(e *jx.Encoder) { e.Str(c.typ) })
						e.Field("value", func(e *jx.Encoder) { e.Str(c.value) })
					})
				}
			})
		})
	})
	return e.Bytes()
}

// Send implements Sender. Any non-2xx response is an error.
func (s *SendGrid) Send(ctx context.Context, m Mail) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(s.body(m)))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return errors.Errorf("sendgrid: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
}
