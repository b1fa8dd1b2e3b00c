package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/demoslots/internal/domain/registration"
	"github.com/gin-gonic/gin"
)

type StudentsHandler struct {
	svc Reservations
	log *slog.Logger
}

func NewStudentsHandler(svc Reservations, log *slog.Logger) *StudentsHandler {
	return &StudentsHandler{svc: svc, log: log}
}

func (h *StudentsHandler) Register(ctx *gin.Context) {
	var req registration.CreateRegistrationRequest

	if !Bind(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	reg, err := h.svc.Submit(cctx, req)
	if err != nil {
		RespondReservationError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message":      "Student registered successfully",
		"registration": reg,
	})
}

func (h *StudentsHandler) List(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	regs, err := h.svc.ListRegistrations(cctx)
	if err != nil {
		RespondReservationError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, regs)
}
