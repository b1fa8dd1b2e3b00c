package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/demoslots/internal/domain/registration"
	"github.com/geocoder89/demoslots/internal/domain/slot"
)

// Store keeps slots and registrations in process. A single mutex covers the
// capacity check, the uniqueness check and both writes, which gives Reserve
// the same all-or-nothing behaviour as the postgres transaction.
type Store struct {
	mu        sync.RWMutex
	slots     map[int64]slot.Slot
	regs      []registration.Registration
	byStudent map[string]struct{}
	nextSlot  int64
	nextReg   int64
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		slots:     make(map[int64]slot.Slot),
		byStudent: make(map[string]struct{}),
		now:       time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) ListSlots(_ context.Context) ([]slot.Slot, error) {
	s.mu.RLock()
	out := make([]slot.Slot, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, sl)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out, nil
}

func (s *Store) SeedSlots(_ context.Context, seeds []slot.Seed) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.slots) > 0 {
		return 0, nil
	}

	for _, seed := range seeds {
		s.nextSlot++
		s.slots[s.nextSlot] = slot.Slot{
			ID:       s.nextSlot,
			Time:     seed.Time,
			Capacity: seed.Capacity,
		}
	}
	return len(seeds), nil
}

func (s *Store) Reserve(_ context.Context, reg registration.Registration) (registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[reg.SlotID]
	if !ok {
		return registration.Registration{}, slot.ErrNotFound
	}

	if sl.Booked >= sl.Capacity {
		return registration.Registration{}, slot.ErrFull
	}

	if _, taken := s.byStudent[reg.StudentID]; taken {
		return registration.Registration{}, registration.ErrDuplicateStudent
	}

	s.nextReg++
	reg.ID = s.nextReg
	reg.CreatedAt = s.now().UTC()

	sl.Booked++
	s.slots[sl.ID] = sl
	s.byStudent[reg.StudentID] = struct{}{}
	s.regs = append(s.regs, reg)

	return reg, nil
}

func (s *Store) ListRegistrations(_ context.Context) ([]registration.View, error) {
	s.mu.RLock()
	out := make([]registration.View, 0, len(s.regs))
	for _, r := range s.regs {
		out = append(out, registration.View{
			Registration: r,
			SlotTime:     s.slots[r.SlotID].Time,
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SlotTime.Equal(out[j].SlotTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].SlotTime.Before(out[j].SlotTime)
	})
	return out, nil
}

func (s *Store) Occupancy(_ context.Context) ([]slot.Occupancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int, len(s.slots))
	for _, r := range s.regs {
		counts[r.SlotID]++
	}

	out := make([]slot.Occupancy, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, slot.Occupancy{
			SlotID:        sl.ID,
			Capacity:      sl.Capacity,
			Booked:        sl.Booked,
			Registrations: counts[sl.ID],
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SlotID < out[j].SlotID })
	return out, nil
}
