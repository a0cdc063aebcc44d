package dashboardcache

import (
	"context"
	"sync"

	"github.com/smallbiznis/taxmate/internal/reporting"
)

const stripeCount = 64

type entry struct {
	gen  uint64
	snap *reporting.Dashboard
}

type stripe struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// Memory keeps snapshots in process. Users hash onto a fixed set of stripes so
// unrelated users rarely contend.
type Memory struct {
	load    Loader
	stripes [stripeCount]stripe
}

func NewMemory(load Loader) *Memory {
	m := &Memory{load: load}
	for i := range m.stripes {
		m.stripes[i].entries = make(map[int64]*entry)
	}
	return m
}

func (m *Memory) stripeFor(userID int64) *stripe {
	return &m.stripes[uint64(userID)%stripeCount]
}

func (m *Memory) Get(_ context.Context, userID int64) (reporting.Dashboard, bool) {
	s := m.stripeFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok || e.snap == nil {
		return reporting.Dashboard{}, false
	}
	return *e.snap, true
}

// Warm loads outside the lock and publishes only if no invalidation happened
// in between.
func (m *Memory) Warm(ctx context.Context, userID int64) error {
	if m.load == nil {
		return ErrNoLoader
	}
	s := m.stripeFor(userID)

	s.mu.Lock()
	gen := uint64(0)
	if e, ok := s.entries[userID]; ok {
		gen = e.gen
	}
	s.mu.Unlock()

	snap, err := m.load(ctx, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		if gen != 0 {
			return nil
		}
		e = &entry{}
		s.entries[userID] = e
	}
	if e.gen != gen {
		return nil
	}
	e.snap = &snap
	return nil
}

func (m *Memory) Invalidate(_ context.Context, userID int64) error {
	s := m.stripeFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		e = &entry{}
		s.entries[userID] = e
	}
	e.gen++
	e.snap = nil
	return nil
}
