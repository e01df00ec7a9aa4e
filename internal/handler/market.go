package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/cryptocop/internal/domain/auth"
)

func (h *Handler) listCryptocurrencies(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	assets, err := h.markets.Assets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, a := range assets {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(a.ID) })
					e.Field("symbol", func(e *jx.Encoder) { e.Str(a.Symbol) })
					e.Field("name", func(e *jx.Encoder) { e.Str(a.Name) })
					e.Field("slug", func(e *jx.Encoder) { e.Str(a.Slug) })
					e.Field("priceInUsd", func(e *jx.Encoder) { encodeNullDecimal(e, a.PriceUSD) })
					e.Field("projectDetails", func(e *jx.Encoder) { e.Str(a.ProjectDetails) })
				})
			}
		})
	})
}

// listExchanges serves one page of market listings, selected by the
// pageNumber query parameter.
func (h *Handler) listExchanges(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	page := 1
	if raw := r.URL.Query().Get("pageNumber"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, badRequest("invalid pageNumber %q", raw))
			return
		}
		page = n
	}

	p, err := h.markets.Exchanges(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("pageNumber", func(e *jx.Encoder) { e.Int(p.PageNumber) })
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, x := range p.Items {
						e.Obj(func(e *jx.Encoder) {
							e.Field("id", func(e *jx.Encoder) { e.Str(x.ID) })
							e.Field("name", func(e *jx.Encoder) { e.Str(x.Name) })
							e.Field("slug", func(e *jx.Encoder) { e.Str(x.Slug) })
							e.Field("assetSymbol", func(e *jx.Encoder) { e.Str(x.AssetSymbol) })
							e.Field("priceInUsd", func(e *jx.Encoder) { encodeNullDecimal(e, x.PriceUSD) })
							e.Field("lastTrade", func(e *jx.Encoder) {
								if x.LastTrade.IsZero() {
									e.Null()
									return
								}
								encodeTime(e, x.LastTrade)
							})
						})
					}
				})
			})
		})
	})
}

func encodeNullDecimal(e *jx.Encoder, v decimal.NullDecimal) {
	if !v.Valid {
		e.Null()
		return
	}
	encodeDecimal(e, v.Decimal)
}
