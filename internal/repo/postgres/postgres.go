package postgres

import (
	"context"

	"github.com/geocoder89/demoslots/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

// observer runs a query through the prometheus DB timers when metrics are
// wired, and straight through otherwise.
type observer struct {
	prom *observability.Prom
}

func (o observer) observe(op string, fn func() error) error {
	if o.prom != nil {
		return o.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Pinger backs the readiness probe.
type Pinger struct {
	pool *pgxpool.Pool
}

func NewPinger(pool *pgxpool.Pool) *Pinger {
	return &Pinger{pool: pool}
}

func (p *Pinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
