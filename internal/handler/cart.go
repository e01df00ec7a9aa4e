package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/cryptocop/internal/domain/auth"
	"github.com/xenking/cryptocop/internal/domain/cart"
)

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	lines, err := h.carts.Lines(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, l := range lines {
						encodeCartLine(e, l)
					}
				})
			})
			e.Field("totalPrice", func(e *jx.Encoder) { encodeDecimal(e, cart.Total(lines)) })
		})
	})
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var (
		product     string
		quantity    decimal.Decimal
		hasQuantity bool
	)
	err := readObject(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "productIdentifier":
			product, err = d.Str()
		case "quantity":
			quantity, err = decodeDecimal(d)
			hasQuantity = true
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && !hasQuantity {
		err = badRequest("quantity is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	line, err := h.carts.Add(r.Context(), claims.UserID, product, quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCartLine(e, *line) })
}

func (h *Handler) updateCartLine(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var (
		quantity    decimal.Decimal
		hasQuantity bool
	)
	err = readObject(r, func(d *jx.Decoder, key string) (err error) {
		if key != "quantity" {
			return d.Skip()
		}
		hasQuantity = true
		quantity, err = decodeDecimal(d)
		return err
	})
	if err == nil && !hasQuantity {
		err = badRequest("quantity is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), claims.UserID, id, quantity); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeCartLine(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.carts.Remove(r.Context(), claims.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	if err := h.carts.Clear(r.Context(), claims.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodeCartLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(l.ID) })
		e.Field("productIdentifier", func(e *jx.Encoder) { e.Str(l.ProductIdentifier) })
		e.Field("quantity", func(e *jx.Encoder) { encodeDecimal(e, l.Quantity) })
		e.Field("unitPrice", func(e *jx.Encoder) { encodeDecimal(e, l.UnitPrice) })
		e.Field("totalPrice", func(e *jx.Encoder) { encodeDecimal(e, l.Total()) })
	})
}
