// Package notify sends the order confirmation email for order-completed
// events.
package notify

import (
	"context"
	"time"
)

// Mail is a rendered, addressed email.
type Mail struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers mail through some transport.
type Sender interface {
	Send(ctx context.Context, m Mail) error
}

// Config selects and configures the mail transport.
type Config struct {
	// Transport is one of sendgrid, smtp, sns or log. Empty picks sendgrid
	// when an API key is set and log otherwise.
	Transport string `usage:"mail transport: sendgrid, smtp, sns or log"`
	FromEmail string `default:"no-reply@cryptocop.is"`
	FromName  string `default:"Cryptocop"`
	// Timeout bounds one send.
	Timeout time.Duration `default:"15s"`

	SendGrid SendGridConfig
	SMTP     SMTPConfig
	SNS      SNSConfig
}

// Transports.
const (
	TransportSendGrid = "sendgrid"
	TransportSMTP     = "smtp"
	TransportSNS      = "sns"
	TransportLog      = "log"
)

// Resolve returns the effective transport name.
func (c Config) Resolve() string {
	if c.Transport != "" {
		return c.Transport
	}
	if c.SendGrid.APIKey != "" {
		return TransportSendGrid
	}
	return TransportLog
}
