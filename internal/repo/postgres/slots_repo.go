package postgres

import (
	"context"

	"github.com/geocoder89/demoslots/internal/domain/slot"
	"github.com/geocoder89/demoslots/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// held while seeding so two replicas starting together do not both seed
const seedLockKey int64 = 0x64656d6f

type SlotsRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewSlotsRepo(pool *pgxpool.Pool, prom *observability.Prom) *SlotsRepo {
	return &SlotsRepo{
		observer: observer{prom: prom},
		pool:     pool,
	}
}

func (repo *SlotsRepo) ListSlots(ctx context.Context) (slots []slot.Slot, err error) {
	var rows pgx.Rows

	err = repo.observe("slots.list", func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, `
			SELECT id, time, capacity, booked
			FROM demo_slots
			ORDER BY time ASC, id ASC
		`)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots = make([]slot.Slot, 0)

	for rows.Next() {
		var s slot.Slot
		if err = rows.Scan(&s.ID, &s.Time, &s.Capacity, &s.Booked); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}

// SeedSlots inserts seeds only when demo_slots is empty and reports how many
// rows it created.
func (repo *SlotsRepo) SeedSlots(ctx context.Context, seeds []slot.Seed) (inserted int, err error) {
	if len(seeds) == 0 {
		return 0, nil
	}

	err = repo.observe("slots.seed", func() error {
		return pgx.BeginFunc(ctx, repo.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, seedLockKey); err != nil {
				return err
			}

			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM demo_slots)`).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}

			batch := &pgx.Batch{}
			for _, s := range seeds {
				batch.Queue(`INSERT INTO demo_slots (time, capacity, booked) VALUES ($1, $2, 0)`, s.Time, s.Capacity)
			}

			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return err
			}

			inserted = len(seeds)
			return nil
		})
	})

	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Occupancy reads every slot's counter next to the number of registrations
// pointing at it.
func (repo *SlotsRepo) Occupancy(ctx context.Context) (out []slot.Occupancy, err error) {
	var rows pgx.Rows

	err = repo.observe("slots.occupancy", func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, `
			SELECT d.id, d.capacity, d.booked, COUNT(s.id)
			FROM demo_slots d
			LEFT JOIN students s ON s.demo_slot_id = d.id
			GROUP BY d.id
			ORDER BY d.time ASC, d.id ASC
		`)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = make([]slot.Occupancy, 0)

	for rows.Next() {
		var o slot.Occupancy
		if err = rows.Scan(&o.SlotID, &o.Capacity, &o.Booked, &o.Registrations); err != nil {
			return nil, err
		}
		out = append(out, o)
	}

	return out, rows.Err()
}
