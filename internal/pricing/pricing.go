// Package pricing quotes unit prices for crypto products.
package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/cryptocop/internal/domain/cart"
)

const maxBodyBytes = 4 << 20

// ErrUnknownSymbol is returned for products the market data source does not
// know.
var ErrUnknownSymbol = errors.New("unknown product")

// Config selects the price source.
type Config struct {
	// Source is messari or fixed.
	Source     string `default:"fixed" usage:"price source: messari or fixed"`
	FixedPrice string `default:"102"`
	Messari    MessariConfig
}

// New builds the source selected by cfg.
func New(cfg Config) (cart.PriceSource, error) {
	switch cfg.Source {
	case "", "fixed":
		p, err := decimal.NewFromString(cfg.FixedPrice)
		if err != nil {
			return nil, errors.Wrap(err, "fixed price")
		}
		return Fixed(p), nil
	case "messari":
		return NewMessari(cfg.Messari, nil), nil
	default:
		return nil, errors.Errorf("unknown price source %q", cfg.Source)
	}
}

// Fixed quotes the same price for every product.
type Fixed decimal.Decimal

// Quote implements cart.PriceSource.
func (f Fixed) Quote(context.Context, string) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}

// MessariConfig configures the Messari market data client.
type MessariConfig struct {
	BaseURL string        `default:"https://data.messari.io/api/v1"`
	APIKey  string        `usage:"Messari API key, optional"`
	Timeout time.Duration `default:"5s"`
}

// Messari quotes the current USD price from Messari asset metrics.
type Messari struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewMessari creates a Messari client. A nil client selects an instrumented
// client with cfg.Timeout.
func NewMessari(cfg MessariConfig, client *http.Client) *Messari {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://data.messari.io/api/v1"
	}
	return &Messari{client: client, baseURL: strings.TrimRight(base, "/"), apiKey: cfg.APIKey}
}

// Quote implements cart.PriceSource.
func (m *Messari) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	path := "/assets/" + url.PathEscape(strings.ToLower(symbol)) + "/metrics/market-data"
	body, err := m.get(ctx, path, url.Values{"fields": {"market_data/price_usd"}})
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return decimal.Zero, errors.Wrap(ErrUnknownSymbol, symbol)
	}
	if err != nil {
		return decimal.Zero, err
	}

	price, err := parsePrice(body)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrap(ErrUnknownSymbol, symbol)
	}
	return price, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("market data: status %d", e.code)
}

// get fetches path below the base URL and returns the body of a 200 response.
func (m *Messari) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := m.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if m.apiKey != "" {
		req.Header.Set("x-messari-api-key", m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "get market data")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &statusError{code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}

// parsePrice extracts data.market_data.price_usd.
func parsePrice(body []byte) (decimal.Decimal, error) {
	var price decimal.NullDecimal
	err := dig(jx.DecodeBytes(body), []string{"data", "market_data", "price_usd"}, func(d *jx.Decoder) (err error) {
		price, err = decodeDecimal(d)
		return err
	})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "decode market data")
	}
	if !price.Valid {
		return decimal.Zero, errors.Wrap(ErrUnknownSymbol, "no price")
	}
	return price.Decimal, nil
}

// dig descends through the objects named by path and calls leaf on the value
// found there. Missing keys and nulls on the way are skipped.
func dig(d *jx.Decoder, path []string, leaf func(d *jx.Decoder) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	if len(path) == 0 {
		return leaf(d)
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != path[0] {
			return d.Skip()
		}
		return dig(d, path[1:], leaf)
	})
}

func decodeDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	n, err := d.Num()
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}
