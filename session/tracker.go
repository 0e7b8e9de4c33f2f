package session

import (
	"sync"
	"time"
)

// OpStats aggregates timings for one operation name.
type OpStats struct {
	Count  int64         `json:"count"`
	Errors int64         `json:"errors"`
	Total  time.Duration `json:"total"`
	Max    time.Duration `json:"max"`
}

// Avg returns the mean duration, or 0 with no samples.
func (s OpStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Tracker records operation timings for one session. There is no package
// default: every controller owns its Tracker (or is handed one), so
// measurements always have an explicit owner and tests can assert on them.
type Tracker struct {
	mu  sync.Mutex
	ops map[string]*OpStats
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{ops: make(map[string]*OpStats)}
}

// Measure starts a span for op and returns its finish function. Pass the
// operation's error to finish so failures are counted.
//
//	finish := tracker.Measure("save")
//	...
//	finish(err)
func (t *Tracker) Measure(op string) func(error) {
	start := time.Now()
	return func(err error) {
		d := time.Since(start)
		t.mu.Lock()
		defer t.mu.Unlock()
		s, ok := t.ops[op]
		if !ok {
			s = &OpStats{}
			t.ops[op] = s
		}
		s.Count++
		if err != nil {
			s.Errors++
		}
		s.Total += d
		if d > s.Max {
			s.Max = d
		}
	}
}

// Snapshot returns a copy of the current aggregates.
func (t *Tracker) Snapshot() map[string]OpStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]OpStats, len(t.ops))
	for k, v := range t.ops {
		out[k] = *v
	}
	return out
}
