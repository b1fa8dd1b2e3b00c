package slot

import (
	"errors"
	"testing"
	"time"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "1", want: 1},
		{raw: " 42 ", want: 42},
		{raw: "0", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "2026-10-17 10:00", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseID(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("ParseID(%q): expected ErrNotFound, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseID(%q) = %d, %v; want %d", tt.raw, got, err, tt.want)
		}
	}
}

func TestBuildSeeds(t *testing.T) {
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	seeds := BuildSeeds(start, 3, 15*time.Minute, 2)
	if len(seeds) != 3 {
		t.Fatalf("got %d seeds, want 3", len(seeds))
	}
	if !seeds[2].Time.Equal(start.Add(30 * time.Minute)) {
		t.Fatalf("third seed at %v", seeds[2].Time)
	}
	for _, s := range seeds {
		if s.Capacity != 2 {
			t.Fatalf("capacity %d, want 2", s.Capacity)
		}
	}

	if BuildSeeds(start, 0, time.Minute, 2) != nil {
		t.Fatalf("expected no seeds for zero count")
	}
}

func TestSlotAvailability(t *testing.T) {
	s := Slot{Capacity: 2, Booked: 1}
	if s.IsFull() || s.Available() != 1 {
		t.Fatalf("unexpected availability for %+v", s)
	}

	s.Booked = 2
	if !s.IsFull() || s.Available() != 0 {
		t.Fatalf("expected full slot for %+v", s)
	}
}
