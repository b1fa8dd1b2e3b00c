package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/demoslots/internal/domain/registration"
	"github.com/geocoder89/demoslots/internal/domain/slot"
	"github.com/gin-gonic/gin"
)

const requestTimeout = 2 * time.Second

// Reservations is the slice of reservation.Service the handlers use.
type Reservations interface {
	Submit(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error)
	ListSlots(ctx context.Context) ([]slot.Slot, error)
	ListRegistrations(ctx context.Context) ([]registration.View, error)
}

type SlotsHandler struct {
	svc Reservations
	log *slog.Logger
}

func NewSlotsHandler(svc Reservations, log *slog.Logger) *SlotsHandler {
	return &SlotsHandler{svc: svc, log: log}
}

func (h *SlotsHandler) ListSlots(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	slots, err := h.svc.ListSlots(cctx)
	if err != nil {
		RespondReservationError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, slots)
}
