package opt

import (
	"sync"
	"time"
)

// RunSummary describes one assignment run for the admin views.
type RunSummary struct {
	Entry     string    `json:"entry"` // import, assign_pending
	Orders    int       `json:"orders"`
	Skipped   int       `json:"skipped"`
	Routes    int       `json:"routes"`
	Workers   int       `json:"workers"`
	Overflow  int       `json:"overflow"`
	MaxScore  float64   `json:"maxScore"`
	Duration  string    `json:"duration"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// RunLog keeps the most recent runs per tenant in memory.
type RunLog struct {
	mu    sync.Mutex
	limit int
	runs  map[string][]RunSummary
}

func NewRunLog(limit int) *RunLog {
	if limit <= 0 {
		limit = 50
	}
	return &RunLog{limit: limit, runs: map[string][]RunSummary{}}
}

func (l *RunLog) Record(tenant string, s RunSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := append(l.runs[tenant], s)
	if len(items) > l.limit {
		items = items[len(items)-l.limit:]
	}
	l.runs[tenant] = items
}

// Recent returns the tenant's runs, newest first.
func (l *RunLog) Recent(tenant string) []RunSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := l.runs[tenant]
	out := make([]RunSummary, len(items))
	for i, s := range items {
		out[len(items)-1-i] = s
	}
	return out
}
