package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/geocoder89/demoslots/internal/cache"
	"github.com/geocoder89/demoslots/internal/domain/registration"
	"github.com/geocoder89/demoslots/internal/domain/slot"
	"github.com/geocoder89/demoslots/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrStorage wraps any failure of the backing store. Only these are worth
// retrying, and only by the caller.
var ErrStorage = errors.New("storage failure")

const slotsCacheKey = "slots:list:v1"

type SlotStore interface {
	ListSlots(ctx context.Context) ([]slot.Slot, error)
	SeedSlots(ctx context.Context, seeds []slot.Seed) (int, error)
}

// RegistrationStore.Reserve must be atomic: it fails with slot.ErrNotFound,
// slot.ErrFull or registration.ErrDuplicateStudent (checked in that order)
// without side effects, or it stores reg and bumps the slot's counter by one.
type RegistrationStore interface {
	Reserve(ctx context.Context, reg registration.Registration) (registration.Registration, error)
	ListRegistrations(ctx context.Context) ([]registration.View, error)
}

type Service struct {
	slots  SlotStore
	regs   RegistrationStore
	cache  cache.Store
	prom   *observability.Prom
	log    *slog.Logger
	tracer trace.Tracer
}

type Option func(*Service)

// WithCache serves ListSlots through c. Reservations never read it.
func WithCache(c cache.Store) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(p *observability.Prom) Option {
	return func(s *Service) { s.prom = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(slots SlotStore, regs RegistrationStore, opts ...Option) *Service {
	s := &Service{
		slots:  slots,
		regs:   regs,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer("github.com/geocoder89/demoslots/internal/reservation"),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates a raw submission and reserves the requested slot.
func (s *Service) Submit(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error) {
	reg, err := registration.Validate(req)
	if err != nil {
		s.observe("invalid")
		return registration.Registration{}, err
	}

	slotID, err := slot.ParseID(string(req.DemoTimeID))
	if err != nil {
		s.observe(resultFor(err))
		return registration.Registration{}, err
	}

	return s.Reserve(ctx, reg, slotID)
}

// Reserve claims one seat of slotID for a validated registration.
func (s *Service) Reserve(ctx context.Context, reg registration.Registration, slotID int64) (registration.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.Reserve",
		trace.WithAttributes(attribute.Int64("slot.id", slotID)),
	)
	defer span.End()

	reg.SlotID = slotID

	out, err := s.regs.Reserve(ctx, reg)
	if err != nil {
		result := resultFor(err)
		s.observe(result)
		span.SetAttributes(attribute.String("reservation.result", result))

		if result == "storage_error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, "storage failure")
			s.log.ErrorContext(ctx, "reservation failed", "slot_id", slotID, "err", err)
			return registration.Registration{}, fmt.Errorf("%w: %w", ErrStorage, err)
		}

		s.log.InfoContext(ctx, "reservation rejected", "slot_id", slotID, "reason", result)
		return registration.Registration{}, err
	}

	s.observe("ok")
	span.SetAttributes(
		attribute.String("reservation.result", "ok"),
		attribute.Int64("registration.id", out.ID),
	)
	s.log.InfoContext(ctx, "reservation committed", "slot_id", slotID, "registration_id", out.ID)

	s.invalidateSlots(ctx)
	return out, nil
}

// ListSlots returns every slot ordered by time.
func (s *Service) ListSlots(ctx context.Context) ([]slot.Slot, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.ListSlots")
	defer span.End()

	if slots, ok := s.cachedSlots(ctx); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return slots, nil
	}

	slots, err := s.slots.ListSlots(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list slots")
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if s.cache != nil {
		raw, err := json.Marshal(slots)
		if err == nil {
			err = s.cache.Set(ctx, slotsCacheKey, raw)
		}
		if err != nil {
			s.log.WarnContext(ctx, "slots cache write failed", "err", err)
		}
	}

	return slots, nil
}

// ListRegistrations returns registrations ordered by their slot's time.
func (s *Service) ListRegistrations(ctx context.Context) ([]registration.View, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.ListRegistrations")
	defer span.End()

	regs, err := s.regs.ListRegistrations(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list registrations")
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return regs, nil
}

// Seed creates the initial slots when none exist yet.
func (s *Service) Seed(ctx context.Context, seeds []slot.Seed) error {
	n, err := s.slots.SeedSlots(ctx, seeds)
	if err != nil {
		return fmt.Errorf("%w: seed slots: %w", ErrStorage, err)
	}

	if n > 0 {
		s.log.InfoContext(ctx, "seeded demo slots", "count", n)
		s.invalidateSlots(ctx)
	}
	return nil
}

func (s *Service) cachedSlots(ctx context.Context) ([]slot.Slot, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, ok, err := s.cache.Get(ctx, slotsCacheKey)
	if err != nil {
		s.log.WarnContext(ctx, "slots cache read failed", "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var slots []slot.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

func (s *Service) invalidateSlots(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, slotsCacheKey); err != nil {
		s.log.WarnContext(ctx, "slots cache invalidation failed", "err", err)
	}
}

func (s *Service) observe(result string) {
	if s.prom != nil {
		s.prom.ObserveReservation(result)
	}
}

func resultFor(err error) string {
	var vErr *registration.ValidationError

	switch {
	case errors.As(err, &vErr):
		return "invalid"
	case errors.Is(err, slot.ErrNotFound):
		return "slot_not_found"
	case errors.Is(err, slot.ErrFull):
		return "slot_full"
	case errors.Is(err, registration.ErrDuplicateStudent):
		return "duplicate"
	default:
		return "storage_error"
	}
}
