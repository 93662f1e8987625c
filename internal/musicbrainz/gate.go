package musicbrainz

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate enforces a minimum interval between requests. It is safe for
// concurrent use; waiters are released one interval apart.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate returns a gate admitting one request per interval. A zero or
// negative interval disables the gate.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request may go out or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
