package quota

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Capability names a class of chargeable operation that is counted
// independently. The string values are the keys used in usage snapshots.
type Capability string

const (
	StandardGeneration    Capability = "flash"
	HighQualityGeneration Capability = "pro"
	Inspection            Capability = "inspection"
	Retry                 Capability = "retry"
)

// Capabilities lists every tracked capability in display order.
var Capabilities = []Capability{StandardGeneration, HighQualityGeneration, Inspection, Retry}

// Limits maps a capability to its daily limit.
type Limits map[Capability]int

// DefaultLimits returns the built-in daily limits.
func DefaultLimits() Limits {
	return Limits{
		StandardGeneration:    50,
		HighQualityGeneration: 10, // high cost per call
		Inspection:            100,
		Retry:                 50,
	}
}

// Usage is the used/limit pair reported for one capability.
type Usage struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// Status is a point-in-time snapshot of all capabilities.
type Status map[Capability]Usage

const dateLayout = "2006-01-02"

type counter struct {
	count     int
	lastReset string
}

// Tracker keeps process-wide daily counters per capability.
//
// Each method is atomic on its own, but CanUse followed by Increment is not:
// two requests racing near a boundary can both be admitted and push the
// count slightly past the limit. The limit is a soft one.
type Tracker struct {
	mu       sync.Mutex
	limits   Limits
	counters map[Capability]*counter
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock used to decide the current date.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker. Capabilities missing from limits use the
// default limit.
func NewTracker(limits Limits, opts ...Option) *Tracker {
	t := &Tracker{
		limits:   DefaultLimits(),
		counters: make(map[Capability]*counter, len(Capabilities)),
		now:      time.Now,
	}
	for c, l := range limits {
		t.limits[normalize(c)] = l
	}
	for _, opt := range opts {
		opt(t)
	}

	today := t.today()
	for _, c := range Capabilities {
		t.counters[c] = &counter{lastReset: today}
	}
	return t
}

// normalize maps unknown capability names to standard generation.
func normalize(c Capability) Capability {
	switch c {
	case HighQualityGeneration, Inspection, Retry:
		return c
	default:
		return StandardGeneration
	}
}

func (t *Tracker) today() string {
	return t.now().Format(dateLayout)
}

// resetIfStale zeroes the counter the first time a new date is observed.
// Caller must hold t.mu.
func (t *Tracker) resetIfStale(c Capability) *counter {
	ctr := t.counters[c]
	today := t.today()
	if ctr.lastReset != today {
		log.Info().Str("capability", string(c)).Int("previousCount", ctr.count).Str("date", today).Msg("daily usage reset")
		ctr.count = 0
		ctr.lastReset = today
	}
	return ctr
}

// CanUse reports whether the capability still has quota left today.
func (t *Tracker) CanUse(c Capability) bool {
	c = normalize(c)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resetIfStale(c).count < t.limits[c]
}

// Increment records one successful use of the capability.
func (t *Tracker) Increment(c Capability) {
	c = normalize(c)
	t.mu.Lock()
	defer t.mu.Unlock()
	ctr := t.resetIfStale(c)
	ctr.count++
	log.Info().Str("capability", string(c)).Int("used", ctr.count).Int("limit", t.limits[c]).Msg("usage incremented")
}

// Limit returns the daily limit for the capability.
func (t *Tracker) Limit(c Capability) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limits[normalize(c)]
}

// Status returns the used/limit pair for every capability.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := make(Status, len(Capabilities))
	for _, c := range Capabilities {
		status[c] = Usage{Used: t.resetIfStale(c).count, Limit: t.limits[c]}
	}
	return status
}
