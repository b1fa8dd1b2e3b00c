package handlers

import (
	"errors"
	"log/slog"

	"github.com/geocoder89/demoslots/internal/domain/registration"
	"github.com/geocoder89/demoslots/internal/domain/slot"
	"github.com/gin-gonic/gin"
)

type reason struct {
	err     error
	code    string
	message string
}

// Every rejection a student can cause is a 400 with its own code. The
// order here does not matter; each error matches exactly one entry.
var rejectionReasons = []reason{
	{registration.ErrMissingField, "missing_field", "Missing required fields"},
	{registration.ErrInvalidName, "invalid_name", "Name must include first and last name using letters only"},
	{registration.ErrInvalidStudentID, "invalid_student_id", "Student ID must be exactly 8 digits"},
	{registration.ErrInvalidEmail, "invalid_email", "Invalid email format"},
	{registration.ErrInvalidPhone, "invalid_phone", "Phone number must be in the format 999-999-9999"},
	{slot.ErrNotFound, "slot_not_found", "Selected demo slot does not exist"},
	{slot.ErrFull, "slot_full", "Selected demo slot is already full"},
	{registration.ErrDuplicateStudent, "duplicate_student", "This student ID is already registered for a demo"},
}

// RespondReservationError maps service errors onto responses. Anything it
// does not recognise is a storage failure: logged here, opaque to clients.
func RespondReservationError(ctx *gin.Context, log *slog.Logger, err error) {
	for _, r := range rejectionReasons {
		if !errors.Is(err, r.err) {
			continue
		}

		var details interface{}
		var vErr *registration.ValidationError
		if errors.As(err, &vErr) {
			details = gin.H{"field": vErr.Field}
		}

		RespondBadRequest(ctx, r.code, r.message, details)
		return
	}

	log.ErrorContext(ctx.Request.Context(), "request failed",
		"method", ctx.Request.Method,
		"route", ctx.FullPath(),
		"err", err,
	)
	RespondInternal(ctx)
}
