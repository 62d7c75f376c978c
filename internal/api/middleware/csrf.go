package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/serviexpress/pkg/crypto"
)

const (
	csrfTokenLength = 32
	csrfCookieName  = "csrf_token"
	csrfHeaderName  = "X-CSRF-Token"
	csrfFormField   = "csrf_token"
	csrfTokenExpiry = 24 * time.Hour

	// maxFormMemory is how much of a multipart body is held in memory; the
	// rest spills to temporary files.
	maxFormMemory = 32 << 20
)

// CSRFToken represents a CSRF token with expiry
type CSRFToken struct {
	Token     string
	ExpiresAt time.Time
}

// CSRFStore keeps one token per visitor, in memory.
type CSRFStore struct {
	tokens map[uuid.UUID]CSRFToken
	mu     sync.RWMutex
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

func NewCSRFStore() *CSRFStore {
	store := &CSRFStore{
		tokens: make(map[uuid.UUID]CSRFToken),
		now:    time.Now,
		done:   make(chan struct{}),
	}

	go store.cleanup(time.Hour)

	return store
}

// Stop ends the cleanup goroutine.
func (s *CSRFStore) Stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *CSRFStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *CSRFStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for visitor, token := range s.tokens {
		if now.After(token.ExpiresAt) {
			delete(s.tokens, visitor)
		}
	}
}

// GetOrCreate returns the visitor's current token, issuing one if needed.
func (s *CSRFStore) GetOrCreate(visitor uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, exists := s.tokens[visitor]; exists {
		if s.now().Before(token.ExpiresAt) {
			return token.Token
		}
	}

	token, err := crypto.GenerateToken(csrfTokenLength)
	if err != nil {
		// crypto/rand does not fail on supported platforms; a fresh uuid keeps
		// the token unguessable if it ever does.
		token = uuid.NewString()
	}

	s.tokens[visitor] = CSRFToken{
		Token:     token,
		ExpiresAt: s.now().Add(csrfTokenExpiry),
	}

	return token
}

// Validate checks if the provided token is valid for the visitor
func (s *CSRFStore) Validate(visitor uuid.UUID, providedToken string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, exists := s.tokens[visitor]
	if !exists {
		return false
	}

	if s.now().After(token.ExpiresAt) {
		return false
	}

	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(token.Token), []byte(providedToken)) == 1
}

// CSRF rejects unsafe requests that do not echo the visitor's token. It must
// run after Visitor.
func CSRF(store *CSRFStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				ensureCSRFCookie(w, r, store)
				next.ServeHTTP(w, r)
				return
			}

			visitor := GetVisitorID(r.Context())
			if visitor == uuid.Nil {
				http.Error(w, "Session required", http.StatusForbidden)
				return
			}

			csrfToken := r.Header.Get(csrfHeaderName)
			if csrfToken == "" {
				if err := parseForm(r); err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
						return
					}
				}
				csrfToken = r.PostFormValue(csrfFormField)
			}

			if csrfToken == "" {
				http.Error(w, "CSRF token missing", http.StatusForbidden)
				return
			}

			if !store.Validate(visitor, csrfToken) {
				http.Error(w, "Invalid CSRF token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// parseForm reads a urlencoded or multipart body. The parsed form stays on r
// for the handler.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// ensureCSRFCookie exposes the token to scripts that post with the header.
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, store *CSRFStore) {
	visitor := GetVisitorID(r.Context())
	if visitor == uuid.Nil {
		return
	}

	token := store.GetOrCreate(visitor)
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value == token {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false, // JavaScript needs to read this
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(csrfTokenExpiry.Seconds()),
	})
}

// GetCSRFToken returns the token templates embed in their forms.
func GetCSRFToken(r *http.Request, store *CSRFStore) string {
	visitor := GetVisitorID(r.Context())
	if visitor == uuid.Nil {
		return ""
	}
	return store.GetOrCreate(visitor)
}
