package slot

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Slot is a bookable demo window. Booked only ever moves upward and never
// passes Capacity.
type Slot struct {
	ID       int64     `json:"id"`
	Time     time.Time `json:"time"`
	Capacity int       `json:"capacity"`
	Booked   int       `json:"booked"`
}

var ErrNotFound = errors.New("slot not found")

// error if every seat is taken
var ErrFull = errors.New("slot is full")

func (s Slot) Available() int {
	if s.Booked >= s.Capacity {
		return 0
	}
	return s.Capacity - s.Booked
}

func (s Slot) IsFull() bool {
	return s.Booked >= s.Capacity
}

// Seed is a slot definition inserted at startup when the table is empty.
type Seed struct {
	Time     time.Time
	Capacity int
}

// BuildSeeds lays out count slots starting at start, interval apart.
func BuildSeeds(start time.Time, count int, interval time.Duration, capacity int) []Seed {
	if count <= 0 || capacity <= 0 {
		return nil
	}

	seeds := make([]Seed, 0, count)
	for i := 0; i < count; i++ {
		seeds = append(seeds, Seed{
			Time:     start.Add(time.Duration(i) * interval),
			Capacity: capacity,
		})
	}
	return seeds
}

// ParseID turns the submitted slot reference into an id. Anything that is
// not a positive integer cannot name a slot.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

// Occupancy compares a slot's counter with the registrations that point at
// it. The two only disagree if something bypassed the reservation path.
type Occupancy struct {
	SlotID        int64 `json:"slotId"`
	Capacity      int   `json:"capacity"`
	Booked        int   `json:"booked"`
	Registrations int   `json:"registrations"`
}

func (o Occupancy) Drifted() bool {
	return o.Booked != o.Registrations
}
