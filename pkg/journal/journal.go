// Package journal keeps a per-request record of the lifecycle signals seen by
// the demo server.
package journal

import (
	"context"
	"sort"

	"github.com/go-go-golems/endevent/pkg/lifecycle"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Record is the folded view of all lifecycle events of one request.
type Record struct {
	RequestID   string             `json:"request_id"`
	Seq         uint64             `json:"seq"`
	Method      string             `json:"method"`
	Path        string             `json:"path"`
	Status      int                `json:"status,omitempty"`
	Signals     []lifecycle.Signal `json:"signals"`
	StartedAtMs int64              `json:"started_at_ms"`
	UpdatedAtMs int64              `json:"updated_at_ms"`
}

func (r Record) DurationMs() int64 {
	if r.UpdatedAtMs < r.StartedAtMs {
		return 0
	}
	return r.UpdatedAtMs - r.StartedAtMs
}

// Ended reports whether the request saw an "end" signal.
func (r Record) Ended() bool {
	for _, s := range r.Signals {
		if s == lifecycle.SignalEnd {
			return true
		}
	}
	return false
}

// Store folds lifecycle events into request records.
//
// Append is idempotent per (request, step): redelivered events are ignored.
// List returns the newest requests first.
type Store interface {
	Append(ctx context.Context, ev lifecycle.Event) error
	Get(ctx context.Context, requestID string) (Record, bool, error)
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StartedAtMs != records[j].StartedAtMs {
			return records[i].StartedAtMs > records[j].StartedAtMs
		}
		return records[i].Seq > records[j].Seq
	})
}
