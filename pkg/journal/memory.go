package journal

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-go-golems/endevent/pkg/lifecycle"
)

// InMemoryStore is a size-limited Store. Once full, the request that entered
// the journal first is evicted.
type InMemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*memEntry
	order      []string
}

type memEntry struct {
	record Record
	steps  map[int]lifecycle.Signal
}

var _ Store = &InMemoryStore{}

func NewInMemoryStore(maxEntries int) *InMemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &InMemoryStore{
		maxEntries: maxEntries,
		entries:    map[string]*memEntry{},
	}
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Append(_ context.Context, ev lifecycle.Event) error {
	if s == nil {
		return errors.New("in-memory journal: nil store")
	}
	id := strings.TrimSpace(ev.RequestID)
	if id == "" {
		return errors.New("in-memory journal: request id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &memEntry{
			record: Record{RequestID: id, Seq: ev.Seq},
			steps:  map[int]lifecycle.Signal{},
		}
		s.entries[id] = e
		s.order = append(s.order, id)
		s.evictLocked()
	}
	if _, seen := e.steps[ev.Step]; seen {
		return nil
	}
	e.steps[ev.Step] = ev.Signal
	foldEvent(&e.record, ev)
	e.record.Signals = orderedSignals(e.steps)
	return nil
}

func (s *InMemoryStore) evictLocked() {
	for len(s.order) > s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
}

func (s *InMemoryStore) Get(_ context.Context, requestID string) (Record, bool, error) {
	if s == nil {
		return Record{}, false, errors.New("in-memory journal: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[strings.TrimSpace(requestID)]
	if !ok {
		return Record{}, false, nil
	}
	return cloneRecord(e.record), true, nil
}

func (s *InMemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	if s == nil {
		return nil, errors.New("in-memory journal: nil store")
	}
	limit = clampLimit(limit)
	s.mu.Lock()
	out := make([]Record, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, cloneRecord(e.record))
	}
	s.mu.Unlock()

	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// foldEvent merges the request-level fields of ev into r.
func foldEvent(r *Record, ev lifecycle.Event) {
	if r.Seq == 0 {
		r.Seq = ev.Seq
	}
	if ev.Method != "" {
		r.Method = ev.Method
	}
	if ev.Path != "" {
		r.Path = ev.Path
	}
	if ev.Status != 0 {
		r.Status = ev.Status
	}
	if ev.At.IsZero() {
		return
	}
	at := ev.At.UnixMilli()
	if r.StartedAtMs == 0 || at < r.StartedAtMs {
		r.StartedAtMs = at
	}
	if at > r.UpdatedAtMs {
		r.UpdatedAtMs = at
	}
}

func orderedSignals(steps map[int]lifecycle.Signal) []lifecycle.Signal {
	keys := make([]int, 0, len(steps))
	for k := range steps {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]lifecycle.Signal, 0, len(keys))
	for _, k := range keys {
		out = append(out, steps[k])
	}
	return out
}

func cloneRecord(r Record) Record {
	r.Signals = append([]lifecycle.Signal(nil), r.Signals...)
	return r
}
