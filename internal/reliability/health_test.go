package reliability

import (
	"math"
	"testing"
	"time"

	"tour_atlas/internal/domain"
)

func TestController_StartsAtFullService(t *testing.T) {
	c := NewController()
	p := c.CurrentPolicy()
	if p.Level != 0 || p.Name != "FULL_SERVICE" {
		t.Fatalf("fresh controller at %d (%s); want 0 (FULL_SERVICE)", p.Level, p.Name)
	}
	for _, src := range []string{domain.ServicePlaces, domain.ServiceGeocoding, domain.ServiceLanguageModel, domain.ServiceCache} {
		if !c.Enabled(src) {
			t.Fatalf("source %s disabled at full service", src)
		}
	}
}

func TestController_ConsecutiveFailuresMarkUnhealthy(t *testing.T) {
	c := NewController()
	for i := 0; i < 3; i++ {
		c.RecordOutcome(domain.ServicePlaces, false, 100*time.Millisecond)
	}

	snap := c.Snapshot()[domain.ServicePlaces]
	if snap.Healthy {
		t.Fatal("expected places unhealthy after 3 consecutive failures")
	}
	if snap.ConsecutiveFailures != 3 {
		t.Fatalf("consecutiveFailures = %d; want 3", snap.ConsecutiveFailures)
	}

	// The only tracked source is unhealthy: level must be at least 2.
	if lvl := c.CurrentPolicy().Level; lvl < 2 {
		t.Fatalf("level = %d; want >= 2", lvl)
	}
}

func TestController_SuccessResetsFailureStreak(t *testing.T) {
	c := NewController()
	c.RecordOutcome(domain.ServicePlaces, false, time.Millisecond)
	c.RecordOutcome(domain.ServicePlaces, false, time.Millisecond)
	c.RecordOutcome(domain.ServicePlaces, true, time.Millisecond)

	snap := c.Snapshot()[domain.ServicePlaces]
	if !snap.Healthy || snap.ConsecutiveFailures != 0 {
		t.Fatalf("snapshot = %+v; want healthy with streak reset", snap)
	}
}

func TestController_SuccessRateEMA(t *testing.T) {
	c := NewController()
	// Fresh source starts trusted at 1.0; each failure multiplies by 0.9.
	c.RecordOutcome(domain.ServiceGeocoding, false, time.Millisecond)
	if sr := c.Snapshot()[domain.ServiceGeocoding].SuccessRate; math.Abs(sr-0.9) > 1e-9 {
		t.Fatalf("success rate after 1 failure = %f; want 0.9", sr)
	}
	c.RecordOutcome(domain.ServiceGeocoding, false, time.Millisecond)
	if sr := c.Snapshot()[domain.ServiceGeocoding].SuccessRate; math.Abs(sr-0.81) > 1e-9 {
		t.Fatalf("success rate after 2 failures = %f; want 0.81", sr)
	}
}

func TestController_SlowResponsesDegrade(t *testing.T) {
	c := NewController()
	// Healthy but very slow: average response time alone forces level 4.
	c.RecordOutcome(domain.ServicePlaces, true, 20*time.Second)
	if lvl := c.CurrentPolicy().Level; lvl != 4 {
		t.Fatalf("level = %d; want 4 for 20s average latency", lvl)
	}
}

func TestController_ForceLevel(t *testing.T) {
	c := NewController()
	if err := c.ForceLevel(4); err != nil {
		t.Fatalf("force: %v", err)
	}
	if !c.Forced() {
		t.Fatal("expected forced flag")
	}
	p := c.CurrentPolicy()
	if p.Level != 4 || p.Name != "MINIMAL_SERVICE" {
		t.Fatalf("policy = %+v; want level 4", p)
	}
	for _, src := range []string{domain.ServicePlaces, domain.ServiceGeocoding, domain.ServiceLanguageModel, domain.ServiceCache} {
		if c.Enabled(src) {
			t.Fatalf("source %s enabled at MINIMAL_SERVICE", src)
		}
	}

	// The next health update releases the override.
	c.RecordOutcome(domain.ServicePlaces, true, 10*time.Millisecond)
	if c.Forced() {
		t.Fatal("expected override cleared by health update")
	}
	if lvl := c.CurrentPolicy().Level; lvl != 0 {
		t.Fatalf("level = %d; want 0 after healthy sample", lvl)
	}
}

func TestController_ForceLevelOutOfRange(t *testing.T) {
	c := NewController()
	if err := c.ForceLevel(7); err == nil {
		t.Fatal("expected error for out-of-range level")
	}
	if err := c.ForceLevel(-1); err == nil {
		t.Fatal("expected error for negative level")
	}
}

func TestController_LevelTableGating(t *testing.T) {
	cases := []struct {
		level   int
		enabled []string
		blocked []string
	}{
		{1, []string{domain.ServicePlaces, domain.ServiceGeocoding, domain.ServiceLanguageModel}, []string{domain.ServiceCache}},
		{2, []string{domain.ServicePlaces, domain.ServiceGeocoding}, []string{domain.ServiceLanguageModel, domain.ServiceCache}},
		{3, []string{domain.ServiceCache}, []string{domain.ServicePlaces, domain.ServiceGeocoding, domain.ServiceLanguageModel}},
	}
	for _, tc := range cases {
		c := NewController()
		if err := c.ForceLevel(tc.level); err != nil {
			t.Fatalf("force %d: %v", tc.level, err)
		}
		for _, src := range tc.enabled {
			if !c.Enabled(src) {
				t.Fatalf("level %d: %s should be enabled", tc.level, src)
			}
		}
		for _, src := range tc.blocked {
			if c.Enabled(src) {
				t.Fatalf("level %d: %s should be blocked", tc.level, src)
			}
		}
	}
}

func TestController_TimeoutShrinksWithLevel(t *testing.T) {
	c := NewController()
	prev := c.Timeout(domain.ServicePlaces)
	for lvl := 1; lvl <= 4; lvl++ {
		if err := c.ForceLevel(lvl); err != nil {
			t.Fatalf("force %d: %v", lvl, err)
		}
		cur := c.Timeout(domain.ServicePlaces)
		if cur >= prev {
			t.Fatalf("timeout at level %d (%v) not smaller than level %d (%v)", lvl, cur, lvl-1, prev)
		}
		prev = cur
	}
}
