package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// requestError is a malformed request. It maps to 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: errors.Errorf(format, args...).Error()}
}

// readObject decodes the body as a JSON object, calling field for each key.
// field must consume or skip the value.
func readObject(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return badRequest("request body must be a JSON object")
	}
	if err := d.Obj(field); err != nil {
		var re *requestError
		if errors.As(err, &re) {
			return re
		}
		return badRequest("malformed JSON: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// decodeDecimal accepts both bare and quoted numbers.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", d.Next())
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, badRequest("invalid number %q", raw)
	}
	return v, nil
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}
