package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/noah-isme/toko-cart/internal/common"
)

// Limiter decides whether one more event for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// SessionKey keys limits by cart session, falling back to the client IP.
func SessionKey(r *http.Request) string {
	if id, ok := common.SessionID(r.Context()); ok {
		return "session:" + id
	}
	return "ip:" + common.ClientIP(r)
}
