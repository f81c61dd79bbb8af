package session

import (
	"errors"
	"sync"
	"time"
)

// ErrBudgetExhausted is returned when a generative cycle is refused by the
// Budget.
var ErrBudgetExhausted = errors.New("generation budget exhausted")

// Budget enforces global and per-key limits on generation calls: a sliding
// per-minute and per-hour window shared by every instance, plus a cooldown per
// key. A nil *Budget allows everything.
type Budget struct {
	mu           sync.Mutex
	perMinute    []time.Time
	perHour      []time.Time
	maxPerMinute int
	maxPerHour   int
	cooldown     time.Duration
	lastByKey    map[string]time.Time
}

// NewBudget returns a budget. Zero limits disable the matching window.
func NewBudget(maxPerMinute, maxPerHour int, cooldown time.Duration) *Budget {
	return &Budget{
		perMinute:    make([]time.Time, 0, 32),
		perHour:      make([]time.Time, 0, 64),
		maxPerMinute: maxPerMinute,
		maxPerHour:   maxPerHour,
		cooldown:     cooldown,
		lastByKey:    make(map[string]time.Time),
	}
}

// Reserve claims a generation slot for key at now. The slot counts against
// both windows and starts the key's cooldown right away, so callers running
// concurrently cannot overrun a window between checking and recording. Call
// release when the generation did not succeed; it is safe to call more than
// once.
func (b *Budget) Reserve(key string, now time.Time) (release func(), ok bool) {
	if b == nil {
		return func() {}, true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, hadPrev := b.lastByKey[key]
	if hadPrev && b.cooldown > 0 && now.Sub(prev) < b.cooldown {
		return nil, false
	}

	b.perMinute = trimBefore(b.perMinute, now.Add(-time.Minute))
	b.perHour = trimBefore(b.perHour, now.Add(-time.Hour))

	if b.maxPerMinute > 0 && len(b.perMinute) >= b.maxPerMinute {
		return nil, false
	}
	if b.maxPerHour > 0 && len(b.perHour) >= b.maxPerHour {
		return nil, false
	}

	b.perMinute = append(b.perMinute, now)
	b.perHour = append(b.perHour, now)
	b.lastByKey[key] = now

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.perMinute = removeOne(b.perMinute, now)
			b.perHour = removeOne(b.perHour, now)
			if last, ok := b.lastByKey[key]; ok && last.Equal(now) {
				if hadPrev {
					b.lastByKey[key] = prev
				} else {
					delete(b.lastByKey, key)
				}
			}
		})
	}, true
}

func removeOne(ts []time.Time, t time.Time) []time.Time {
	for i := range ts {
		if ts[i].Equal(t) {
			return append(ts[:i], ts[i+1:]...)
		}
	}
	return ts
}

func trimBefore(ts []time.Time, cut time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if t.After(cut) {
			out = append(out, t)
		}
	}
	return out
}
