package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const visitorIDKey contextKey = "visitor_id"

const (
	visitorCookieName = "sid"
	visitorCookieAge  = 30 * 24 * 60 * 60
)

// Visitor gives every browser a random id in the "sid" cookie. Forms are not
// tied to accounts, so this id is what CSRF tokens are bound to.
func Visitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := visitorFromCookie(r)
		if !ok {
			id = uuid.New()
			http.SetCookie(w, &http.Cookie{
				Name:     visitorCookieName,
				Value:    id.String(),
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   visitorCookieAge,
			})
		}

		ctx := context.WithValue(r.Context(), visitorIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func visitorFromCookie(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie(visitorCookieName)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// GetVisitorID returns the visitor id set by Visitor, or uuid.Nil.
func GetVisitorID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(visitorIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
