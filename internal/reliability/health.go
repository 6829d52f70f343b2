package reliability

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tour_atlas/internal/adapters/observability"
	"tour_atlas/internal/domain"
)

// emaWeight is the weight of each new success/failure sample in the rolling
// success rate (decay factor 0.9 per observation).
const emaWeight = 0.1

// unhealthyAfter is the consecutive-failure count at which a source stops
// counting as healthy.
const unhealthyAfter = 3

// ServiceHealth is a snapshot of one tracked source.
type ServiceHealth struct {
	Healthy             bool
	SuccessRate         float64
	LastLatencyMs       int64
	ConsecutiveFailures int
}

// LevelPolicy is one row of the degradation table: which sources may run and
// how much time each call gets.
type LevelPolicy struct {
	Level   int
	Name    string
	Enabled map[string]bool
	Timeout time.Duration
}

func sourceSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// levelTable is static configuration, read-only at runtime. Level 0 is full
// service, level 4 leaves nothing but name-only results.
var levelTable = [5]LevelPolicy{
	{0, "FULL_SERVICE",
		sourceSet(domain.ServicePlaces, domain.ServiceGeocoding, domain.ServiceLanguageModel, domain.ServiceCache),
		10 * time.Second},
	{1, "REDUCED_QUALITY",
		sourceSet(domain.ServicePlaces, domain.ServiceGeocoding, domain.ServiceLanguageModel),
		7 * time.Second},
	{2, "ESSENTIAL_ONLY",
		sourceSet(domain.ServicePlaces, domain.ServiceGeocoding),
		5 * time.Second},
	{3, "CACHE_ONLY",
		sourceSet(domain.ServiceCache),
		2 * time.Second},
	{4, "MINIMAL_SERVICE",
		sourceSet(),
		time.Second},
}

// levelThresholds select a level from aggregate health, worst case first:
// the first row whose condition matches wins.
var levelThresholds = []struct {
	healthBelow float64
	avgRTAbove  time.Duration
	level       int
}{
	{0.3, 15 * time.Second, 4},
	{0.5, 10 * time.Second, 3},
	{0.7, 7 * time.Second, 2},
	{0.9, 5 * time.Second, 1},
}

type healthRecord struct {
	successRate         float64
	lastLatency         time.Duration
	consecutiveFailures int
}

func (r *healthRecord) healthy() bool { return r.consecutiveFailures < unhealthyAfter }

// Controller maintains rolling per-source health and the system-wide
// degradation level derived from it. Safe for concurrent use; health updates
// are idempotent increments, so samples from abandoned calls are harmless.
type Controller struct {
	mu       sync.RWMutex
	services map[string]*healthRecord
	level    int
	forced   bool
}

func NewController() *Controller {
	c := &Controller{services: make(map[string]*healthRecord)}
	observability.SetDegradationLevel(0)
	return c
}

// RecordOutcome folds one call result into the source's health and
// re-evaluates the system level. A forced level is released by the next
// health update.
func (c *Controller) RecordOutcome(source string, success bool, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.services[source]
	if !ok {
		// Lazy creation; a source starts out trusted.
		rec = &healthRecord{successRate: 1.0}
		c.services[source] = rec
	}

	sample := 0.0
	if success {
		sample = 1.0
		rec.consecutiveFailures = 0
	} else {
		rec.consecutiveFailures++
	}
	rec.successRate = rec.successRate*(1-emaWeight) + sample*emaWeight
	rec.lastLatency = latency

	c.forced = false
	c.setLevel(c.computeLevel())
}

func (c *Controller) computeLevel() int {
	if len(c.services) == 0 {
		return 0
	}
	healthy := 0
	var totalRT time.Duration
	for _, rec := range c.services {
		if rec.healthy() {
			healthy++
		}
		totalRT += rec.lastLatency
	}
	overall := float64(healthy) / float64(len(c.services))
	avgRT := totalRT / time.Duration(len(c.services))

	for _, t := range levelThresholds {
		if overall < t.healthBelow || avgRT > t.avgRTAbove {
			return t.level
		}
	}
	return 0
}

// setLevel records a transition; callers hold the write lock.
func (c *Controller) setLevel(level int) {
	if level == c.level {
		return
	}
	log.Warn().
		Int("from", c.level).
		Int("to", level).
		Str("policy", levelTable[level].Name).
		Msg("degradation level changed")
	c.level = level
	observability.SetDegradationLevel(level)
}

// ForceLevel pins the level administratively until the next health update.
func (c *Controller) ForceLevel(level int) error {
	if level < 0 || level >= len(levelTable) {
		return fmt.Errorf("degradation level %d out of range [0,%d]", level, len(levelTable)-1)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forced = true
	c.setLevel(level)
	return nil
}

// Release clears an administrative override and recomputes from health.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forced = false
	c.setLevel(c.computeLevel())
}

// Enabled reports whether the current level permits calls to the source.
func (c *Controller) Enabled(source string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return levelTable[c.level].Enabled[source]
}

// Timeout is the per-call budget for a source at the current level.
func (c *Controller) Timeout(source string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return levelTable[c.level].Timeout
}

// CurrentPolicy exposes the active level row.
func (c *Controller) CurrentPolicy() LevelPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return levelTable[c.level]
}

// Forced reports whether the current level is an administrative override.
func (c *Controller) Forced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.forced
}

// Snapshot copies the per-source health map for the admin endpoint.
func (c *Controller) Snapshot() map[string]ServiceHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]ServiceHealth, len(c.services))
	for name, rec := range c.services {
		out[name] = ServiceHealth{
			Healthy:             rec.healthy(),
			SuccessRate:         rec.successRate,
			LastLatencyMs:       rec.lastLatency.Milliseconds(),
			ConsecutiveFailures: rec.consecutiveFailures,
		}
	}
	return out
}
