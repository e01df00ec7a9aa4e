package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/cryptocop/internal/domain/auth"
	"github.com/xenking/cryptocop/internal/domain/profile"
)

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	list, err := h.profiles.Addresses(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeAddress(e, &list[i])
			}
		})
	})
}

func (h *Handler) addAddress(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var a profile.Address
	err := readObject(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "streetName":
			a.StreetName, err = d.Str()
		case "houseNumber":
			a.HouseNumber, err = d.Str()
		case "zipCode":
			a.ZipCode, err = d.Str()
		case "country":
			a.Country, err = d.Str()
		case "city":
			a.City, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.profiles.AddAddress(r.Context(), claims.UserID, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeAddress(e, created) })
}

func (h *Handler) deleteAddress(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.profiles.DeleteAddress(r.Context(), claims.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPaymentCards(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	list, err := h.profiles.PaymentCards(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodePaymentCard(e, &list[i])
			}
		})
	})
}

func (h *Handler) addPaymentCard(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var c profile.PaymentCard
	err := readObject(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "cardholderName":
			c.CardholderName, err = d.Str()
		case "cardNumber":
			c.CardNumber, err = d.Str()
		case "cardType":
			c.CardType, err = d.Str()
		case "month":
			c.Month, err = d.Int()
		case "year":
			c.Year, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.profiles.AddPaymentCard(r.Context(), claims.UserID, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodePaymentCard(e, created) })
}

func encodeAddress(e *jx.Encoder, a *profile.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(a.ID) })
		e.Field("streetName", func(e *jx.Encoder) { e.Str(a.StreetName) })
		e.Field("houseNumber", func(e *jx.Encoder) { e.Str(a.HouseNumber) })
		e.Field("zipCode", func(e *jx.Encoder) { e.Str(a.ZipCode) })
		e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
	})
}

// encodePaymentCard writes c as is; callers pass masked cards.
func encodePaymentCard(e *jx.Encoder, c *profile.PaymentCard) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("cardholderName", func(e *jx.Encoder) { e.Str(c.CardholderName) })
		e.Field("cardNumber", func(e *jx.Encoder) { e.Str(c.CardNumber) })
		e.Field("cardType", func(e *jx.Encoder) { e.Str(c.CardType) })
		e.Field("month", func(e *jx.Encoder) { e.Int(c.Month) })
		e.Field("year", func(e *jx.Encoder) { e.Int(c.Year) })
	})
}
