package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/cryptocop/internal/domain/auth"
	"github.com/xenking/cryptocop/internal/domain/order"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	list, err := h.orders.List(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeOrder(e, &list[i])
			}
		})
	})
}

// checkout turns the caller's cart into an order. The cart is implicit.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req order.CheckoutRequest
	err := readObject(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "addressId":
			req.AddressID, err = d.Int64()
		case "paymentCardId":
			req.PaymentCardID, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Checkout(r.Context(), claims.UserID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("email", func(e *jx.Encoder) { e.Str(o.Email) })
		e.Field("fullName", func(e *jx.Encoder) { e.Str(o.FullName) })
		e.Field("streetName", func(e *jx.Encoder) { e.Str(o.StreetName) })
		e.Field("houseNumber", func(e *jx.Encoder) { e.Str(o.HouseNumber) })
		e.Field("zipCode", func(e *jx.Encoder) { e.Str(o.ZipCode) })
		e.Field("country", func(e *jx.Encoder) { e.Str(o.Country) })
		e.Field("city", func(e *jx.Encoder) { e.Str(o.City) })
		e.Field("cardholderName", func(e *jx.Encoder) { e.Str(o.CardholderName) })
		e.Field("creditCard", func(e *jx.Encoder) { e.Str(o.MaskedCardNumber) })
		e.Field("orderDate", func(e *jx.Encoder) { encodeTime(e, o.OrderDate) })
		e.Field("totalPrice", func(e *jx.Encoder) { encodeDecimal(e, o.Total) })
		e.Field("orderItems", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Int64(l.ID) })
						e.Field("productIdentifier", func(e *jx.Encoder) { e.Str(l.ProductIdentifier) })
						e.Field("quantity", func(e *jx.Encoder) { encodeDecimal(e, l.Quantity) })
						e.Field("unitPrice", func(e *jx.Encoder) { encodeDecimal(e, l.UnitPrice) })
						e.Field("totalPrice", func(e *jx.Encoder) { encodeDecimal(e, l.TotalPrice) })
					})
				}
			})
		})
	})
}
