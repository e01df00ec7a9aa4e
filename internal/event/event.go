// Package event defines the order-completed wire contract shared by the
// checkout publisher and the downstream workers.
// Consumers never look anything up and never write back to the order.
package event

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Broker addressing shared by every process.
const (
	Exchange            = "cryptocop-exchange"
	RoutingOrderCreated = "create-order"
	QueueEmail          = "email-queue"
	QueuePayment        = "payment-queue"
)

// ErrMalformed is returned by Decode for payloads that can never be processed.
var ErrMalformed = errors.New("malformed order event")

// OrderCompleted is the flattened projection of a committed order.
type OrderCompleted struct {
	OrderID        int64
	Email          string
	FullName       string
	Address        string
	City           string
	ZipCode        string
	Country        string
	CardholderName string
	// CreditCard is the unmasked number; only the validation worker reads it.
	CreditCard string
	TotalPrice decimal.Decimal
	OrderDate  time.Time
	Items      []Item
}

// Item is one order line.
type Item struct {
	ProductIdentifier string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	TotalPrice        decimal.Decimal
}

// MessageID returns a stable id for the event so redeliveries and replays of
// the same order are recognizable downstream.
func (e *OrderCompleted) MessageID() string {
	return "order-" + strconv.FormatInt(e.OrderID, 10)
}

// Encode serializes e to JSON.
func Encode(e *OrderCompleted) []byte {
	w := jx.GetEncoder()
	defer jx.PutEncoder(w)

	w.Obj(func(w *jx.Encoder) {
		w.Field("orderId", func(w *jx.Encoder) { w.Int64(e.OrderID) })
		w.Field("email", func(w *jx.Encoder) { w.Str(e.Email) })
		w.Field("fullName", func(w *jx.Encoder) { w.Str(e.FullName) })
		w.Field("address", func(w *jx.Encoder) { w.Str(e.Address) })
		w.Field("city", func(w *jx.Encoder) { w.Str(e.City) })
		w.Field("zipCode", func(w *jx.Encoder) { w.Str(e.ZipCode) })
		w.Field("country", func(w *jx.Encoder) { w.Str(e.Country) })
		w.Field("cardholderName", func(w *jx.Encoder) { w.Str(e.CardholderName) })
		w.Field("creditCard", func(w *jx.Encoder) { w.Str(e.CreditCard) })
		w.Field("totalPrice", func(w *jx.Encoder) { encodeDecimal(w, e.TotalPrice) })
		w.Field("orderDate", func(w *jx.Encoder) { w.Str(e.OrderDate.UTC().Format(time.RFC3339Nano)) })
		w.Field("items", func(w *jx.Encoder) {
			w.Arr(func(w *jx.Encoder) {
				for _, it := range e.Items {
					w.Obj(func(w *jx.Encoder) {
						w.Field("productIdentifier", func(w *jx.Encoder) { w.Str(it.ProductIdentifier) })
						w.Field("quantity", func(w *jx.Encoder) { encodeDecimal(w, it.Quantity) })
						w.Field("unitPrice", func(w *jx.Encoder) { encodeDecimal(w, it.UnitPrice) })
						w.Field("totalPrice", func(w *jx.Encoder) { encodeDecimal(w, it.TotalPrice) })
					})
				}
			})
		})
	})

	out := make([]byte, len(w.Bytes()))
	copy(out, w.Bytes())
	return out
}

// encodeDecimal writes d as a bare JSON number without going through float64.
func encodeDecimal(w *jx.Encoder, d decimal.Decimal) {
	w.Raw([]byte(d.String()))
}

// Decode parses a payload produced by Encode. Any structural problem,
// including a missing order id, wraps ErrMalformed.
func Decode(data []byte) (*OrderCompleted, error) {
	var e OrderCompleted
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return nil, errors.Wrap(ErrMalformed, "expected object")
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "orderId":
			e.OrderID, err = d.Int64()
		case "email":
			e.Email, err = d.Str()
		case "fullName":
			e.FullName, err = d.Str()
		case "address":
			e.Address, err = d.Str()
		case "city":
			e.City, err = d.Str()
		case "zipCode":
			e.ZipCode, err = d.Str()
		case "country":
			e.Country, err = d.Str()
		case "cardholderName":
			e.CardholderName, err = d.Str()
		case "creditCard":
			e.CreditCard, err = d.Str()
		case "totalPrice":
			e.TotalPrice, err = decodeDecimal(d)
		case "orderDate":
			var s string
			if s, err = d.Str(); err == nil {
				e.OrderDate, err = time.Parse(time.RFC3339Nano, s)
			}
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				e.Items = append(e.Items, it)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	if e.OrderID <= 0 {
		return nil, errors.Wrap(ErrMalformed, "missing orderId")
	}
	if e.Email == "" {
		return nil, errors.Wrap(ErrMalformed, "missing email")
	}
	return &e, nil
}

func decodeItem(d *jx.Decoder) (Item, error) {
	var it Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productIdentifier":
			it.ProductIdentifier, err = d.Str()
		case "quantity":
			it.Quantity, err = decodeDecimal(d)
		case "unitPrice":
			it.UnitPrice, err = decodeDecimal(d)
		case "totalPrice":
			it.TotalPrice, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return Item{}, errors.Wrap(err, "item")
	}
	// Recompute when totalPrice is absent.
	if it.TotalPrice.IsZero() {
		it.TotalPrice = it.Quantity.Mul(it.UnitPrice)
	}
	return it, nil
}

// decodeDecimal accepts both bare and quoted numbers.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", d.Next())
	}
}
