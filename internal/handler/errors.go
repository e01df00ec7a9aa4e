package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cryptocop/internal/domain/auth"
	"github.com/xenking/cryptocop/internal/domain/cart"
	"github.com/xenking/cryptocop/internal/domain/order"
	"github.com/xenking/cryptocop/internal/domain/profile"
	"github.com/xenking/cryptocop/internal/pricing"
	"github.com/xenking/cryptocop/pkg/httpmiddleware"
)

var errUnauthenticated = errors.New("authentication required")

// Sentinels whose own message is safe to return to the client.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{profile.ErrNotFound, http.StatusNotFound},
	{cart.ErrLineNotFound, http.StatusNotFound},
	{order.ErrNotFound, http.StatusNotFound},
	{order.ErrEmptyCart, http.StatusConflict},
	{auth.ErrEmailTaken, http.StatusConflict},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
	{auth.ErrTokenRevoked, http.StatusUnauthorized},
	{errUnauthenticated, http.StatusUnauthorized},
	{cart.ErrInvalidQuantity, http.StatusBadRequest},
	{cart.ErrInvalidProduct, http.StatusBadRequest},
	{pricing.ErrUnknownSymbol, http.StatusBadRequest},
	{auth.ErrPasswordMismatch, http.StatusBadRequest},
	{auth.ErrWeakPassword, http.StatusBadRequest},
	{auth.ErrInvalidEmail, http.StatusBadRequest},
}

func classify(err error) (int, string) {
	var (
		notFound *order.NotFoundError
		field    *profile.InvalidFieldError
		req      *requestError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error()
	case errors.As(err, &field):
		return http.StatusBadRequest, field.Error()
	case errors.As(err, &req):
		return http.StatusBadRequest, req.Error()
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status, s.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// writeError maps err to a status and writes the error body. Unexpected
// errors are logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	httpmiddleware.WriteError(w, status, msg)
}
