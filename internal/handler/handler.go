// Package handler serves the checkout API over net/http.
package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/cryptocop/internal/domain/auth"
	"github.com/xenking/cryptocop/internal/domain/cart"
	"github.com/xenking/cryptocop/internal/domain/order"
	"github.com/xenking/cryptocop/internal/domain/profile"
	"github.com/xenking/cryptocop/internal/pricing"
)

// Accounts is implemented by *auth.Service.
type Accounts interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, credentialID int64) error
}

// Profiles is implemented by *profile.Service.
type Profiles interface {
	AddAddress(ctx context.Context, userID int64, a profile.Address) (*profile.Address, error)
	Addresses(ctx context.Context, userID int64) ([]profile.Address, error)
	DeleteAddress(ctx context.Context, userID, id int64) error
	AddPaymentCard(ctx context.Context, userID int64, c profile.PaymentCard) (*profile.PaymentCard, error)
	PaymentCards(ctx context.Context, userID int64) ([]profile.PaymentCard, error)
}

// Carts is implemented by *cart.Service.
type Carts interface {
	Add(ctx context.Context, userID int64, product string, quantity decimal.Decimal) (*cart.Line, error)
	Lines(ctx context.Context, userID int64) ([]cart.Line, error)
	UpdateQuantity(ctx context.Context, userID, lineID int64, quantity decimal.Decimal) error
	Remove(ctx context.Context, userID, lineID int64) error
	Clear(ctx context.Context, userID int64) error
}

// Orders is implemented by *order.Service.
type Orders interface {
	Checkout(ctx context.Context, userID int64, req order.CheckoutRequest) (*order.Order, error)
	List(ctx context.Context, userID int64) ([]order.Order, error)
}

// Markets is implemented by *pricing.Messari.
type Markets interface {
	Assets(ctx context.Context) ([]pricing.Asset, error)
	Exchanges(ctx context.Context, page int) (*pricing.ExchangePage, error)
}

// Handler implements the API routes.
type Handler struct {
	accounts Accounts
	profiles Profiles
	carts    Carts
	orders   Orders
	markets  Markets
}

// New creates a Handler.
func New(accounts Accounts, profiles Profiles, carts Carts, orders Orders, markets Markets) *Handler {
	return &Handler{
		accounts: accounts,
		profiles: profiles,
		carts:    carts,
		orders:   orders,
		markets:  markets,
	}
}

// Register mounts the API on mux. Everything except register and sign-in
// needs the claims installed by Authenticate.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/account/register", h.register)
	mux.HandleFunc("POST /api/account/signin", h.signIn)
	mux.Handle("GET /api/account/signout", authed(h.signOut))

	mux.Handle("GET /api/addresses", authed(h.listAddresses))
	mux.Handle("POST /api/addresses", authed(h.addAddress))
	mux.Handle("DELETE /api/addresses/{id}", authed(h.deleteAddress))

	mux.Handle("GET /api/payments", authed(h.listPaymentCards))
	mux.Handle("POST /api/payments", authed(h.addPaymentCard))

	mux.Handle("GET /api/cart", authed(h.listCart))
	mux.Handle("POST /api/cart", authed(h.addToCart))
	mux.Handle("PATCH /api/cart/{id}", authed(h.updateCartLine))
	mux.Handle("DELETE /api/cart/{id}", authed(h.removeCartLine))
	mux.Handle("DELETE /api/cart", authed(h.clearCart))

	mux.Handle("GET /api/cryptocurrencies", authed(h.listCryptocurrencies))
	mux.Handle("GET /api/exchanges", authed(h.listExchanges))

	mux.Handle("GET /api/orders", authed(h.listOrders))
	mux.Handle("POST /api/orders", authed(h.checkout))
}

type authedFunc func(w http.ResponseWriter, r *http.Request, claims *auth.Claims)

func authed(fn authedFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, r, errUnauthenticated)
			return
		}
		fn(w, r, claims)
	})
}
