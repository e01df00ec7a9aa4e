package pricing

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Tradable lists the symbols offered in the catalog.
var Tradable = []string{"BTC", "ETH", "USDT", "LINK"}

// Asset is a catalog entry.
type Asset struct {
	ID             string
	Symbol         string
	Name           string
	Slug           string
	PriceUSD       decimal.NullDecimal
	ProjectDetails string
}

// Exchange is one market listing: an asset traded on an exchange.
type Exchange struct {
	ID          string
	Name        string
	Slug        string
	AssetSymbol string
	PriceUSD    decimal.NullDecimal
	LastTrade   time.Time
}

// ExchangePage is one page of market listings.
type ExchangePage struct {
	PageNumber int
	Items      []Exchange
}

// Assets returns the tradable assets with their current USD price.
func (m *Messari) Assets(ctx context.Context) ([]Asset, error) {
	body, err := m.get(ctx, "/assets", url.Values{
		"fields": {"id,symbol,name,slug,metrics/market_data/price_usd,profile/general/overview/project_details"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "list assets")
	}

	var out []Asset
	err = eachData(body, func(d *jx.Decoder) error {
		var a Asset
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
			switch string(key) {
			case "id":
				a.ID, err = str(d)
			case "symbol":
				a.Symbol, err = str(d)
			case "name":
				a.Name, err = str(d)
			case "slug":
				a.Slug, err = str(d)
			case "metrics":
				err = dig(d, []string{"market_data", "price_usd"}, func(d *jx.Decoder) (err error) {
					a.PriceUSD, err = decodeDecimal(d)
					return err
				})
			case "profile":
				err = dig(d, []string{"general", "overview", "project_details"}, func(d *jx.Decoder) (err error) {
					a.ProjectDetails, err = d.Str()
					return err
				})
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if tradable(a.Symbol) {
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode assets")
	}
	return out, nil
}

// Exchanges returns one page of market listings. Pages start at 1.
func (m *Messari) Exchanges(ctx context.Context, page int) (*ExchangePage, error) {
	if page < 1 {
		page = 1
	}
	body, err := m.get(ctx, "/markets", url.Values{
		"page":   {strconv.Itoa(page)},
		"fields": {"exchange_id,exchange_name,exchange_slug,base_asset_symbol,price_usd,last_trade_at"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "list markets")
	}

	p := &ExchangePage{PageNumber: page, Items: []Exchange{}}
	err = eachData(body, func(d *jx.Decoder) error {
		var x Exchange
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
			switch string(key) {
			case "exchange_id":
				x.ID, err = str(d)
			case "exchange_name":
				x.Name, err = str(d)
			case "exchange_slug":
				x.Slug, err = str(d)
			case "base_asset_symbol":
				x.AssetSymbol, err = str(d)
			case "price_usd":
				x.PriceUSD, err = decodeDecimal(d)
			case "last_trade_at":
				var raw string
				if raw, err = str(d); err == nil && raw != "" {
					x.LastTrade, err = time.Parse(time.RFC3339Nano, raw)
				}
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		p.Items = append(p.Items, x)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode markets")
	}
	return p, nil
}

// eachData calls item for every element of the top-level data array.
func eachData(body []byte, item func(d *jx.Decoder) error) error {
	return jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "data" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Arr(item)
	})
}

// str reads a string, treating null as empty.
func str(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func tradable(symbol string) bool {
	for _, s := range Tradable {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}
