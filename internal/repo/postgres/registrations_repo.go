package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/demoslots/internal/domain/registration"
	"github.com/geocoder89/demoslots/internal/domain/slot"
	"github.com/geocoder89/demoslots/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistrationsRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewRegistrationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RegistrationsRepo {
	return &RegistrationsRepo{
		observer: observer{prom: prom},
		pool:     pool,
	}
}

func (repo *RegistrationsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return repo.pool.BeginTx(ctx, pgx.TxOptions{})
}

// Reserve claims one seat in reg.SlotID and records the registration in a
// single transaction. Either both land or neither does.
func (repo *RegistrationsRepo) Reserve(ctx context.Context, reg registration.Registration) (out registration.Registration, err error) {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return
	}

	// no-op once committed
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	out, err = repo.ReserveTx(ctx, tx, reg)
	if err != nil {
		return
	}

	err = repo.observe("registrations.reserve.commit", func() error {
		return tx.Commit(ctx)
	})

	return
}

// ReserveTx does the work of Reserve inside a caller-owned transaction.
//
// The seat is claimed with a conditional increment rather than a read
// followed by a write: the row lock taken by the UPDATE serializes
// competing reservations on the same slot, and postgres re-checks
// booked < capacity against the latest row version once the lock is free.
func (repo *RegistrationsRepo) ReserveTx(ctx context.Context, tx pgx.Tx, reg registration.Registration) (out registration.Registration, err error) {
	// 1) claim a seat
	claimed := true

	err = repo.observe("registrations.reserve.claim_seat", func() error {
		var booked int
		e := tx.QueryRow(ctx, `
			UPDATE demo_slots
			SET booked = booked + 1
			WHERE id = $1 AND booked < capacity
			RETURNING booked
		`, reg.SlotID).Scan(&booked)

		if errors.Is(e, pgx.ErrNoRows) {
			claimed = false
			return nil
		}
		return e
	})
	if err != nil {
		return
	}

	// 2) nothing updated: tell a missing slot apart from a full one
	if !claimed {
		var exists bool
		err = repo.observe("registrations.reserve.slot_exists", func() error {
			return tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM demo_slots WHERE id = $1)`, reg.SlotID).Scan(&exists)
		})
		if err != nil {
			return
		}

		if exists {
			err = slot.ErrFull
		} else {
			err = slot.ErrNotFound
		}
		return
	}

	// 3) record the registration; a taken student id rolls the seat back
	out = reg
	inserted := true

	err = repo.observe("registrations.reserve.insert", func() error {
		e := tx.QueryRow(ctx, `
			INSERT INTO students (student_id, name, email, phone_number, project_name, demo_slot_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT ON CONSTRAINT students_student_id_uniq DO NOTHING
			RETURNING id, created_at
		`, reg.StudentID, reg.FullName, reg.Email, reg.Phone, reg.ProjectDescription, reg.SlotID).Scan(&out.ID, &out.CreatedAt)

		if errors.Is(e, pgx.ErrNoRows) {
			inserted = false
			return nil
		}
		return e
	})
	if err != nil {
		out = registration.Registration{}
		return
	}

	if !inserted {
		out = registration.Registration{}
		err = registration.ErrDuplicateStudent
		return
	}

	return
}

func (repo *RegistrationsRepo) ListRegistrations(ctx context.Context) (regs []registration.View, err error) {
	var rows pgx.Rows

	err = repo.observe("registrations.list", func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, `
			SELECT s.id, s.student_id, s.name, s.email, s.phone_number, s.project_name,
			       s.demo_slot_id, s.created_at, d.time
			FROM students s
			JOIN demo_slots d ON d.id = s.demo_slot_id
			ORDER BY d.time ASC, s.id ASC
		`)
		return qerr
	})
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	regs = make([]registration.View, 0)

	for rows.Next() {
		var v registration.View

		e := rows.Scan(
			&v.ID, &v.StudentID, &v.FullName, &v.Email, &v.Phone, &v.ProjectDescription,
			&v.SlotID, &v.CreatedAt, &v.SlotTime,
		)
		if e != nil {
			return nil, e
		}
		regs = append(regs, v)
	}

	if e := rows.Err(); e != nil {
		if repo.prom != nil {
			repo.prom.DbErrorsTotal.WithLabelValues("registrations.list", "rows_err").Inc()
		}
		return nil, e
	}

	return regs, nil
}
