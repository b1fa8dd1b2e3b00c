package worker

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/demoslots/internal/domain/slot"
	"github.com/geocoder89/demoslots/internal/observability"
)

// OccupancySource reads every slot's counter next to its registration count.
type OccupancySource interface {
	Occupancy(ctx context.Context) ([]slot.Occupancy, error)
}

type Config struct {
	Interval time.Duration
	// per audit query
	Timeout time.Duration
}

// Worker periodically checks that no slot's booked counter has drifted from
// the registrations stored against it. It only reads.
type Worker struct {
	cfg  Config
	src  OccupancySource
	prom *observability.Prom
	log  *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, src OccupancySource, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Worker{
		cfg:  cfg,
		src:  src,
		prom: prom,
		log:  log,
	}
}

// Run audits immediately, then every Interval, backing off after failures,
// until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	failures := 0

	for {
		wait := w.cfg.Interval

		if _, err := w.AuditOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			wait = ExponentialBackoff(failures)
			failures++
			w.log.WarnContext(ctx, "audit failed", "err", err, "retry_in", wait.String())
		} else {
			failures = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.setReady(false)
			w.log.Info("audit worker received shutdown signal")
			return nil
		case <-timer.C:
		}
	}

	w.setReady(false)
	return nil
}

// Report summarises one audit.
type Report struct {
	Slots      int
	Drifted    []slot.Occupancy
	Overbooked []slot.Occupancy
}

func (r Report) Clean() bool {
	return len(r.Drifted) == 0 && len(r.Overbooked) == 0
}

func (w *Worker) AuditOnce(ctx context.Context) (Report, error) {
	actx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	occ, err := w.src.Occupancy(actx)
	if err != nil {
		w.countRun("error")
		return Report{}, err
	}

	rep := Report{Slots: len(occ)}

	for _, o := range occ {
		if o.Drifted() {
			rep.Drifted = append(rep.Drifted, o)
		}
		if o.Booked > o.Capacity {
			rep.Overbooked = append(rep.Overbooked, o)
		}

		if w.prom != nil && o.Capacity > 0 {
			w.prom.SlotBookedRatio.
				WithLabelValues(strconv.FormatInt(o.SlotID, 10)).
				Set(float64(o.Booked) / float64(o.Capacity))
		}
	}

	for _, o := range rep.Drifted {
		w.log.ErrorContext(ctx, "slot occupancy drift",
			"slot_id", o.SlotID,
			"booked", o.Booked,
			"registrations", o.Registrations,
		)
	}
	for _, o := range rep.Overbooked {
		w.log.ErrorContext(ctx, "slot overbooked",
			"slot_id", o.SlotID,
			"booked", o.Booked,
			"capacity", o.Capacity,
		)
	}

	if w.prom != nil {
		w.prom.SlotsDrifted.Set(float64(len(rep.Drifted)))
	}

	if rep.Clean() {
		w.countRun("clean")
		w.log.DebugContext(ctx, "audit clean", "slots", rep.Slots)
	} else {
		w.countRun("drift")
	}

	w.setReady(true)
	return rep, nil
}

func (w *Worker) countRun(result string) {
	if w.prom != nil {
		w.prom.AuditRuns.WithLabelValues(result).Inc()
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}
