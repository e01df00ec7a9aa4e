package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/cryptocop/internal/domain/auth"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	err := readObject(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "email":
			req.Email, err = d.Str()
		case "fullName":
			req.FullName, err = d.Str()
		case "password":
			req.Password, err = d.Str()
		case "passwordConfirmation":
			req.PasswordConfirmation, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeSession(e, s) })
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var email, password string
	err := readObject(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "email":
			email, err = d.Str()
		case "password":
			password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s, err := h.accounts.SignIn(r.Context(), email, password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSession(e, s) })
}

// signOut revokes the credential the request was authenticated with.
func (h *Handler) signOut(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	if err := h.accounts.SignOut(r.Context(), claims.TokenID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodeSession(e *jx.Encoder, s *auth.Session) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("token", func(e *jx.Encoder) { e.Str(s.Token) })
		e.Field("expiresAt", func(e *jx.Encoder) { encodeTime(e, s.ExpiresAt) })
		e.Field("user", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Int64(s.User.ID) })
				e.Field("email", func(e *jx.Encoder) { e.Str(s.User.Email) })
				e.Field("fullName", func(e *jx.Encoder) { e.Str(s.User.FullName) })
			})
		})
	})
}
