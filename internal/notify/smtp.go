package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"mime"
	"net"
	"net/smtp"
	"strings"

	"github.com/go-faster/errors"
)

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     string `default:"587"`
	Username string
	Password string
}

// SMTP sends multipart mail through an SMTP relay.
type SMTP struct {
	addr string
	auth smtp.Auth
	from string
	name string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP creates an SMTP sender.
func NewSMTP(cfg Config) (*SMTP, error) {
	if cfg.SMTP.Host == "" {
		return nil, errors.New("smtp host is empty")
	}
	var auth smtp.Auth
	if cfg.SMTP.Username != "" {
		auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
	}
	return &SMTP{
		addr: net.JoinHostPort(cfg.SMTP.Host, cfg.SMTP.Port),
		auth: auth,
		from: cfg.FromEmail,
		name: cfg.FromName,
		send: smtp.SendMail,
	}, nil
}

// Send implements Sender. net/smtp has no context support, so ctx is only
// checked before dialing.
func (s *SMTP) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.message(m)
	if err != nil {
		return err
	}
	if err := s.send(s.addr, s.auth, s.from, []string{m.To}, msg); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}

func (s *SMTP) message(m Mail) ([]byte, error) {
	var raw [12]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, errors.Wrap(err, "boundary")
	}
	boundary := hex.EncodeToString(raw[:])

	var b strings.Builder
	b.WriteString("From: " + mime.QEncoding.Encode("utf-8", s.name) + " <" + s.from + ">\r\n")
	b.WriteString("To: " + mime.QEncoding.Encode("utf-8", m.ToName) + " <" + m.To + ">\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", m.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=" + boundary + "\r\n\r\n")
	for _, part := range [...]struct{ typ, body string }{
		{"text/plain", m.Text},
		{"text/html", m.HTML},
	} {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: " + part.typ + "; charset=UTF-8\r\n\r\n")
		b.WriteString(part.body + "\r\n")
	}
	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String()), nil
}
