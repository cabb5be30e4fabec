// Package history describes audit entries for simulation and optimization
// calls. Entries are written for audit and backup only.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"warpmine/domain/core"
)

// Kind of call being recorded
type Kind string

const (
	KindExtraction   Kind = "extraction"
	KindComparison   Kind = "extraction_compare"
	KindExploration  Kind = "exploration"
	KindOptimization Kind = "optimization"
	KindChat         Kind = "chat"

	KindWeightedOptimization Kind = "weighted_optimization"
)

// Entry is one append-only audit record
type Entry struct {
	Key        string          `json:"key" db:"key"`
	Timestamp  core.Timestamp  `json:"timestamp" db:"-"`
	RequestID  core.RequestID  `json:"request_id" db:"request_id"`
	Kind       Kind            `json:"kind" db:"kind"`
	Request    json.RawMessage `json:"request,omitempty" db:"request"`
	Result     json.RawMessage `json:"result,omitempty" db:"result"`
	Error      string          `json:"error,omitempty" db:"error"`
	DurationMS int64           `json:"duration_ms" db:"duration_ms"`
}

// Key builds the sortable "<timestamp>/<request id>" key
func Key(ts core.Timestamp, id core.RequestID) string {
	return ts.String() + "/" + id.String()
}

// NewEntry marshals request and result into an entry keyed at ts
func NewEntry(ts core.Timestamp, id core.RequestID, kind Kind, request, result any, callErr error, took time.Duration) (Entry, error) {
	e := Entry{
		Key:        Key(ts, id),
		Timestamp:  ts,
		RequestID:  id,
		Kind:       kind,
		DurationMS: took.Milliseconds(),
	}
	if request != nil {
		raw, err := json.Marshal(request)
		if err != nil {
			return Entry{}, fmt.Errorf("marshal history request: %w", err)
		}
		e.Request = raw
	}
	if result != nil && callErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return Entry{}, fmt.Errorf("marshal history result: %w", err)
		}
		e.Result = raw
	}
	if callErr != nil {
		e.Error = callErr.Error()
	}
	return e, nil
}

// Filter narrows a history listing. Zero values mean no constraint.
type Filter struct {
	Kind   Kind
	Since  core.Timestamp
	Limit  int
	Offset int
}

// Matches reports whether e passes the kind and time constraints
func (f Filter) Matches(e Entry) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// Apply takes entries stored oldest first and returns the matches newest
// first, after skipping Offset of them and keeping at most Limit
func (f Filter) Apply(entries []Entry) []Entry {
	capHint := len(entries)
	if f.Limit > 0 && f.Limit < capHint {
		capHint = f.Limit
	}
	out := make([]Entry, 0, capHint)
	skipped := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !f.Matches(e) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Window is how many trailing matches Apply can need: Offset plus Limit, or
// zero when every match is needed
func (f Filter) Window() int {
	if f.Limit <= 0 {
		return 0
	}
	return f.Offset + f.Limit
}
