package reliability

import (
	"context"
	crand "crypto/rand"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"tour_atlas/internal/domain"
)

// Policy controls retry behavior for one source type.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterRatio       float64
	Retryable         map[Category]bool
}

func retryableSet(cats ...Category) map[Category]bool {
	m := make(map[Category]bool, len(cats))
	for _, c := range cats {
		m[c] = true
	}
	return m
}

var transientCategories = []Category{
	CategoryNetwork, CategoryRateLimit, CategoryServiceUnavailable,
	CategoryTimeout, CategoryUnknown,
}

// defaultPolicies keys by the service names the degradation controller
// tracks. The language-model policy uses a larger jitter because a shared
// upstream rate limit synchronizes callers, and excludes data-quality
// failures: re-asking the model for unparseable output rarely helps.
var defaultPolicies = map[string]Policy{
	domain.ServicePlaces: {
		MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second,
		BackoffMultiplier: 2.0, JitterRatio: 0.10,
		Retryable: retryableSet(append(transientCategories, CategoryDataQuality)...),
	},
	domain.ServiceGeocoding: {
		MaxAttempts: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second,
		BackoffMultiplier: 2.0, JitterRatio: 0.10,
		Retryable: retryableSet(append(transientCategories, CategoryDataQuality)...),
	},
	domain.ServiceLanguageModel: {
		MaxAttempts: 2, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second,
		BackoffMultiplier: 2.0, JitterRatio: 0.15,
		Retryable: retryableSet(transientCategories...),
	},
}

// PolicyFor returns the default retry policy for a source, falling back to
// the places policy for unrecognized names.
func PolicyFor(source string) Policy {
	if p, ok := defaultPolicies[source]; ok {
		return p
	}
	return defaultPolicies[domain.ServicePlaces]
}

// Outcome reports how an operation went through the retry loop.
type Outcome struct {
	Attempts int
	Elapsed  time.Duration
}

// Retrier executes operations under per-source retry policies.
type Retrier struct {
	policies map[string]Policy
}

func NewRetrier() *Retrier { return &Retrier{policies: defaultPolicies} }

// Do runs op under the named source's policy. See DoWithPolicy.
func (r *Retrier) Do(ctx context.Context, source string, op func(context.Context) error) (Outcome, error) {
	p, ok := r.policies[source]
	if !ok {
		p = defaultPolicies[domain.ServicePlaces]
	}
	return r.DoWithPolicy(ctx, p, source, op)
}

// DoWithPolicy runs op, retrying classified-retryable failures with capped
// exponential backoff plus jitter. The first attempt runs immediately. The
// returned error, if any, is the last attempt's *CategorizedError.
func (r *Retrier) DoWithPolicy(ctx context.Context, p Policy, source string, op func(context.Context) error) (Outcome, error) {
	start := time.Now()
	var lastErr *CategorizedError

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return Outcome{Attempts: attempt, Elapsed: time.Since(start)}, nil
		}

		lastErr = Classify(err)
		out := Outcome{Attempts: attempt, Elapsed: time.Since(start)}

		if !lastErr.Retryable || !p.Retryable[lastErr.Category] {
			return out, lastErr
		}
		if attempt == p.MaxAttempts {
			return out, lastErr
		}

		delay := backoffDelay(p, attempt)
		log.Debug().
			Str("source", source).
			Str("category", string(lastErr.Category)).
			Str("correlation_id", lastErr.CorrelationID).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retrying after failure")

		if !sleepCtx(ctx, delay) {
			return Outcome{Attempts: attempt, Elapsed: time.Since(start)}, lastErr
		}
	}

	return Outcome{Attempts: p.MaxAttempts, Elapsed: time.Since(start)}, lastErr
}

// backoffDelay computes min(base * mult^(attempt-1), max) with symmetric
// jitter of ±(delay * jitterRatio), floored at zero.
func backoffDelay(p Policy, attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	d += d * p.JitterRatio * (2*randFloat() - 1)
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// randFloat returns a uniform value in [0,1] from crypto/rand, safe under
// concurrency without a shared locked source.
func randFloat() float64 {
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0.5
	}
	return float64(b[0]) / 255.0
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
