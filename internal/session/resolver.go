package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-cart/internal/common"
)

const (
	DefaultHeader = "X-Cart-Session"
	DefaultCookie = "cart_session"
	maxIDLength   = 128
)

// Resolver identifies the cart session of a request from a header or cookie
// and mints a new session when neither carries a usable id.
type Resolver struct {
	HeaderName string
	CookieName string
	// CookieTTL sets the cookie Max-Age. Zero makes it a browser-session cookie.
	CookieTTL time.Duration
	Secure    bool
	NewID     func() string
}

// NewResolver returns a resolver using the given header and cookie names,
// falling back to X-Cart-Session and cart_session.
func NewResolver(headerName, cookieName string, ttl time.Duration, secure bool) *Resolver {
	if strings.TrimSpace(headerName) == "" {
		headerName = DefaultHeader
	}
	if strings.TrimSpace(cookieName) == "" {
		cookieName = DefaultCookie
	}
	return &Resolver{
		HeaderName: headerName,
		CookieName: cookieName,
		CookieTTL:  ttl,
		Secure:     secure,
		NewID:      uuid.NewString,
	}
}

// Middleware resolves the session, stores it on the request context and echoes
// it in the session header. A minted session is also set as a cookie.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.Resolve(req)
		if id == "" {
			id = r.mint()
			http.SetCookie(w, r.cookie(id))
		}
		w.Header().Set(r.HeaderName, id)
		next.ServeHTTP(w, req.WithContext(With(req.Context(), id)))
	})
}

// Resolve returns the session id carried by the request, or "" when absent or
// malformed.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if id := strings.TrimSpace(req.Header.Get(r.HeaderName)); valid(id) {
		return id
	}
	if c, err := req.Cookie(r.CookieName); err == nil {
		if id := strings.TrimSpace(c.Value); valid(id) {
			return id
		}
	}
	return ""
}

func (r *Resolver) mint() string {
	if r.NewID != nil {
		if id := r.NewID(); valid(id) {
			return id
		}
	}
	return uuid.NewString()
}

func (r *Resolver) cookie(id string) *http.Cookie {
	c := &http.Cookie{
		Name:     r.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if r.CookieTTL > 0 {
		c.MaxAge = int(r.CookieTTL / time.Second)
	}
	return c
}

// valid accepts ids safe to embed in a storage key.
func valid(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// With stores the session id inside the context.
func With(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return common.WithSessionID(ctx, id)
}

// FromContext extracts the session id from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	return common.SessionID(ctx)
}
