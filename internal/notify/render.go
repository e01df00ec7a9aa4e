package notify

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"strconv"
	texttemplate "text/template"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cryptocop/internal/event"
)

//go:embed templates
var templates embed.FS

// DateLayout is how order dates appear in emails.
const DateLayout = "02.01.2006"

var funcs = map[string]any{
	"date":  func(t time.Time) string { return t.Format(DateLayout) },
	"money": func(d decimal.Decimal) string { return "$" + d.String() },
}

// Renderer builds confirmation emails.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	h, err := htmltemplate.New("order.html").Funcs(funcs).ParseFS(templates, "templates/order.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse html template")
	}
	t, err := texttemplate.New("order.txt").Funcs(funcs).ParseFS(templates, "templates/order.txt")
	if err != nil {
		return nil, errors.Wrap(err, "parse text template")
	}
	return &Renderer{html: h, text: t}, nil
}

// Render produces the confirmation mail for e.
func (r *Renderer) Render(e *event.OrderCompleted) (Mail, error) {
	var html, text bytes.Buffer
	if err := r.html.Execute(&html, e); err != nil {
		return Mail{}, errors.Wrap(err, "render html")
	}
	if err := r.text.Execute(&text, e); err != nil {
		return Mail{}, errors.Wrap(err, "render text")
	}
	return Mail{
		To:      e.Email,
		ToName:  e.FullName,
		Subject: "Cryptocop order #" + strconv.FormatInt(e.OrderID, 10),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
