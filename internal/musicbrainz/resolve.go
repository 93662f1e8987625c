package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/singleflight"

	"github.com/binaryphile/ddp-inspect/internal/logging"
)

// ErrLookupUnavailable means every applicable lookup method failed and none
// produced a match.
var ErrLookupUnavailable = errors.New("metadata lookup unavailable")

// Service is the set of lookups the Resolver needs. *Client implements it.
type Service interface {
	LookupByDiscID(ctx context.Context, discID string) ([]Release, error)
	SearchByBarcode(ctx context.Context, barcode string) ([]Release, error)
	SearchByISRCs(ctx context.Context, isrcs []string) ([]Release, error)
}

// Method names a lookup strategy.
type Method string

const (
	MethodDiscID  Method = "discid"
	MethodBarcode Method = "barcode"
	MethodISRC    Method = "isrc"
	// MethodManual marks a release supplied from a metadata file rather
	// than found by a lookup.
	MethodManual  Method = "manual"
)

// Outcome summarizes a Resolve call.
type Outcome string

const (
	OutcomeMatched     Outcome = "matched"
	OutcomeNoMatch     Outcome = "no_match"
	OutcomeUnavailable Outcome = "unavailable"
)

// Query is what is known about a disc.
type Query struct {
	DiscID     string
	UPC        string
	ISRCs      []string
	TrackCount int  // used to rank matches; zero keeps service order
	Exhaustive bool // try every method even after a match
}

func (q Query) key() string {
	return fmt.Sprintf("%s|%s|%s|%d|%t", q.DiscID, q.UPC, strings.Join(q.ISRCs, ","), q.TrackCount, q.Exhaustive)
}

// Attempt records how one method went.
type Attempt struct {
	Method  Method `json:"method"`
	Matches int    `json:"matches"`
	Tries   int    `json:"tries"`
	Skipped bool   `json:"skipped,omitempty"` // no input for this method
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a lookup. Method is the first method that
// matched.
type Result struct {
	DiscID     string    `json:"disc_id"`
	Matches    []Release `json:"matches"`
	Method     Method    `json:"method,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Attempts   []Attempt `json:"attempts"`
	Exhaustive bool      `json:"exhaustive,omitempty"` // every method was tried
}

// Resolver tries the lookup methods in priority order: disc ID, barcode,
// then ISRC.
type Resolver struct {
	svc        Service
	logger     *slog.Logger
	retryDelay time.Duration
	group      singleflight.Group
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logging.NewComponentLogger(logger, "lookup")
	}
}

// WithRetryDelay sets the backoff before the single retry.
func WithRetryDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.retryDelay = d
	}
}

// NewResolver returns a Resolver over svc.
func NewResolver(svc Service, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		svc:        svc,
		logger:     logging.NewComponentLogger(nil, "lookup"),
		retryDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks the disc up. Zero matches is OutcomeNoMatch with a nil error;
// ErrLookupUnavailable is returned only when no method matched and at least
// one failed after its retry. Identical concurrent queries share one
// execution and its Result. The shared execution is not bound to any one
// caller's cancellation; a caller whose ctx ends stops waiting and gets
// ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(q.key(), func() (any, error) {
		result, err := r.resolve(shared, q)
		if result == nil {
			return nil, err
		}
		return result, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		result, ok := res.Val.(*Result)
		if !ok {
			return nil, res.Err
		}
		out := *result
		return &out, res.Err
	}
}

func (r *Resolver) resolve(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	r.logger.Debug("resolving disc",
		logging.String(logging.FieldDiscID, q.DiscID),
		logging.String("upc", q.UPC),
		logging.Any("isrcs", q.ISRCs),
		logging.Bool("exhaustive", q.Exhaustive))
	defer func() {
		r.logger.Debug("resolve finished",
			logging.String(logging.FieldDiscID, q.DiscID),
			logging.Duration("elapsed", time.Since(start)))
	}()

	result := &Result{DiscID: q.DiscID, Exhaustive: q.Exhaustive}
	seen := make(map[string]bool)
	var lastErr error

	steps := []struct {
		method Method
		ready  bool
		call   func(context.Context) ([]Release, error)
	}{
		{MethodDiscID, q.DiscID != "", func(ctx context.Context) ([]Release, error) {
			return r.svc.LookupByDiscID(ctx, q.DiscID)
		}},
		{MethodBarcode, q.UPC != "", func(ctx context.Context) ([]Release, error) {
			return r.svc.SearchByBarcode(ctx, q.UPC)
		}},
		{MethodISRC, len(q.ISRCs) > 0, func(ctx context.Context) ([]Release, error) {
			return r.svc.SearchByISRCs(ctx, q.ISRCs)
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if result.Method != "" && !q.Exhaustive {
			break
		}

		attempt := Attempt{Method: step.method}
		if !step.ready {
			attempt.Skipped = true
			result.Attempts = append(result.Attempts, attempt)
			continue
		}

		releases, tries, err := r.try(ctx, step.method, step.call)
		attempt.Tries = tries
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			attempt.Error = err.Error()
			result.Attempts = append(result.Attempts, attempt)
			lastErr = err
			r.logger.Debug("lookup method failed",
				logging.String(logging.FieldMethod, string(step.method)),
				logging.Error(err),
			)
			continue
		}

		attempt.Matches = len(releases)
		result.Attempts = append(result.Attempts, attempt)
		for _, rel := range releases {
			if rel.MBID != "" && seen[rel.MBID] {
				continue
			}
			seen[rel.MBID] = true
			result.Matches = append(result.Matches, rel)
		}
		if len(releases) > 0 && result.Method == "" {
			result.Method = step.method
		}
		r.logger.Debug("lookup method finished",
			logging.String(logging.FieldMethod, string(step.method)),
			logging.Int("matches", len(releases)),
		)
	}

	if q.TrackCount > 0 {
		result.Matches = SortReleasesByTrackMatch(result.Matches, q.TrackCount)
	}

	switch {
	case len(result.Matches) > 0:
		result.Outcome = OutcomeMatched
	case lastErr != nil:
		result.Outcome = OutcomeUnavailable
		return result, fmt.Errorf("%w: %w", ErrLookupUnavailable, lastErr)
	default:
		result.Outcome = OutcomeNoMatch
	}
	return result, nil
}

// try runs call with one retry after a backoff. Client errors (4xx other
// than 429) are not retried, nor is anything once ctx itself is done. A
// request that hit its own timeout is retried.
func (r *Resolver) try(ctx context.Context, method Method, call func(context.Context) ([]Release, error)) ([]Release, int, error) {
	var releases []Release
	tries := 0
	err := retry.Do(
		func() error {
			tries++
			var err error
			releases, err = call(ctx)
			return err
		},
		retry.Attempts(2),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && isTransient(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Debug("retrying lookup",
				logging.String(logging.FieldMethod, string(method)),
				logging.Int("attempt", int(n)+1),
				logging.Error(err),
			)
		}),
		retry.Context(ctx),
	)
	return releases, tries, err
}

func isTransient(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}
	return true
}
