package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Reservations
	ReservationResults *prometheus.CounterVec

	// Occupancy audit (worker)
	AuditRuns       *prometheus.CounterVec
	SlotsDrifted    prometheus.Gauge
	SlotBookedRatio *prometheus.GaugeVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "demoslots",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "demoslots",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "demoslots",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "demoslots",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "demoslots",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		ReservationResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "demoslots",
				Subsystem: "reservations",
				Name:      "results_total",
				Help:      "Reservation outcomes by result.",
			},
			[]string{"result"}, // result=ok|invalid|slot_not_found|slot_full|duplicate|storage_error
		),
		AuditRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "demoslots",
				Subsystem: "audit",
				Name:      "runs_total",
				Help:      "Occupancy audit runs by outcome.",
			},
			[]string{"result"}, // result=clean|drift|error
		),
		SlotsDrifted: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "demoslots",
				Subsystem: "audit",
				Name:      "slots_drifted",
				Help:      "Slots whose booked counter disagreed with their registrations on the last audit.",
			},
		),
		SlotBookedRatio: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "demoslots",
				Subsystem: "audit",
				Name:      "slot_booked_ratio",
				Help:      "booked/capacity per slot as of the last audit.",
			},
			[]string{"slot_id"},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.ReservationResults,
		p.AuditRuns, p.SlotsDrifted, p.SlotBookedRatio,
	)

	return p
}

func (p *Prom) ObserveReservation(result string) {
	p.ReservationResults.WithLabelValues(result).Inc()
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}
