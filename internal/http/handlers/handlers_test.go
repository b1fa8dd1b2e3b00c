package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/demoslots/internal/domain/registration"
	"github.com/geocoder89/demoslots/internal/domain/slot"
	"github.com/geocoder89/demoslots/internal/http/handlers"
	"github.com/geocoder89/demoslots/internal/reservation"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Fake implementation of handlers.Reservations

type fakeReservations struct {
	submitFn    func(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error)
	listSlotsFn func(ctx context.Context) ([]slot.Slot, error)
	listRegsFn  func(ctx context.Context) ([]registration.View, error)
}

func (f *fakeReservations) Submit(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error) {
	if f.submitFn != nil {
		return f.submitFn(ctx, req)
	}
	return registration.Registration{}, nil
}

func (f *fakeReservations) ListSlots(ctx context.Context) ([]slot.Slot, error) {
	if f.listSlotsFn != nil {
		return f.listSlotsFn(ctx)
	}
	return []slot.Slot{}, nil
}

func (f *fakeReservations) ListRegistrations(ctx context.Context) ([]registration.View, error) {
	if f.listRegsFn != nil {
		return f.listRegsFn(ctx)
	}
	return []registration.View{}, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details struct {
		Field string `json:"field"`
		JSON  string `json:"json"`
	} `json:"details"`
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

const validBody = `{
	"fullName": "Sam Doe",
	"email": "sam@example.com",
	"studentId": "12345678",
	"number": "123-456-7890",
	"projectDescription": "Campus map",
	"demoTimeId": 2
}`

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
		wantCode   string
	}{
		{name: "success", body: validBody, wantStatus: http.StatusCreated},
		{name: "missing field", body: validBody, submitErr: &registration.ValidationError{Kind: registration.ErrMissingField, Field: "email"}, wantStatus: http.StatusBadRequest, wantCode: "missing_field"},
		{name: "invalid name", body: validBody, submitErr: &registration.ValidationError{Kind: registration.ErrInvalidName, Field: "fullName"}, wantStatus: http.StatusBadRequest, wantCode: "invalid_name"},
		{name: "invalid student id", body: validBody, submitErr: &registration.ValidationError{Kind: registration.ErrInvalidStudentID, Field: "studentId"}, wantStatus: http.StatusBadRequest, wantCode: "invalid_student_id"},
		{name: "invalid email", body: validBody, submitErr: &registration.ValidationError{Kind: registration.ErrInvalidEmail, Field: "email"}, wantStatus: http.StatusBadRequest, wantCode: "invalid_email"},
		{name: "invalid phone", body: validBody, submitErr: &registration.ValidationError{Kind: registration.ErrInvalidPhone, Field: "number"}, wantStatus: http.StatusBadRequest, wantCode: "invalid_phone"},
		{name: "slot not found", body: validBody, submitErr: slot.ErrNotFound, wantStatus: http.StatusBadRequest, wantCode: "slot_not_found"},
		{name: "slot full", body: validBody, submitErr: slot.ErrFull, wantStatus: http.StatusBadRequest, wantCode: "slot_full"},
		{name: "duplicate student", body: validBody, submitErr: registration.ErrDuplicateStudent, wantStatus: http.StatusBadRequest, wantCode: "duplicate_student"},
		{name: "storage failure", body: validBody, submitErr: fmt.Errorf("%w: %w", reservation.ErrStorage, errors.New("pq: relation does not exist")), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
		{name: "malformed json", body: `{"fullName":`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			called := false
			fake := &fakeReservations{
				submitFn: func(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error) {
					called = true
					if tt.submitErr != nil {
						return registration.Registration{}, tt.submitErr
					}
					return registration.Registration{ID: 1, StudentID: req.StudentID, SlotID: 2, CreatedAt: time.Now().UTC()}, nil
				},
			}

			h := handlers.NewStudentsHandler(fake, discard)
			r := setupRouter(http.MethodPost, "/students", h.Register)

			req := httptest.NewRequest(http.MethodPost, "/students", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantCode == "invalid_request" && called {
				t.Fatalf("service must not be called for a malformed body")
			}

			if tt.wantCode == "" {
				var ok struct {
					Message string `json:"message"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &ok); err != nil || ok.Message == "" {
					t.Fatalf("expected a message, body=%s", w.Body.String())
				}
				return
			}

			var resp errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
			}
			if resp.Code != tt.wantCode {
				t.Fatalf("code: got %q want %q", resp.Code, tt.wantCode)
			}
			if resp.Error == "" {
				t.Fatalf("expected a human readable reason")
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(w.Body.String(), "relation") {
				t.Fatalf("storage detail leaked to client: %s", w.Body.String())
			}
		})
	}
}

func TestRegisterHandler_ValidationDetailsNameField(t *testing.T) {
	fake := &fakeReservations{
		submitFn: func(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error) {
			return registration.Registration{}, &registration.ValidationError{Kind: registration.ErrInvalidPhone, Field: "number"}
		},
	}

	h := handlers.NewStudentsHandler(fake, discard)
	r := setupRouter(http.MethodPost, "/students", h.Register)

	req := httptest.NewRequest(http.MethodPost, "/students", bytes.NewBufferString(validBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp errorBody
	_ = json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Error != "Phone number must be in the format 999-999-9999" {
		t.Fatalf("unexpected reason %q", resp.Error)
	}
	if resp.Details.Field != "number" {
		t.Fatalf("details.field: got %q want number", resp.Details.Field)
	}
}

func TestRegisterHandler_FormEncoded(t *testing.T) {
	var got registration.CreateRegistrationRequest

	fake := &fakeReservations{
		submitFn: func(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error) {
			got = req
			return registration.Registration{ID: 9}, nil
		},
	}

	h := handlers.NewStudentsHandler(fake, discard)
	r := setupRouter(http.MethodPost, "/students", h.Register)

	form := url.Values{}
	form.Set("fullName", "Sam Doe")
	form.Set("email", "sam@example.com")
	form.Set("studentId", "12345678")
	form.Set("number", "123-456-7890")
	form.Set("projectDescription", "Campus map")
	form.Set("demoTimeId", "4")

	req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if got.DemoTimeID != "4" || got.Number != "123-456-7890" {
		t.Fatalf("form fields not bound: %+v", got)
	}
}

func TestListStudentsHandler(t *testing.T) {
	slotTime := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	fake := &fakeReservations{
		listRegsFn: func(ctx context.Context) ([]registration.View, error) {
			return []registration.View{
				{Registration: registration.Registration{ID: 1, StudentID: "12345678", SlotID: 1}, SlotTime: slotTime},
			}, nil
		},
	}

	h := handlers.NewStudentsHandler(fake, discard)
	r := setupRouter(http.MethodGet, "/students", h.List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/students", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	var out []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0]["studentId"] != "12345678" || out[0]["slotTime"] != "2026-10-18T09:00:00Z" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestListSlotsHandler_ETag(t *testing.T) {
	fake := &fakeReservations{
		listSlotsFn: func(ctx context.Context) ([]slot.Slot, error) {
			return []slot.Slot{{ID: 1, Time: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), Capacity: 3, Booked: 1}}, nil
		},
	}

	h := handlers.NewSlotsHandler(fake, discard)
	r := setupRouter(http.MethodGet, "/demo-slots", h.ListSlots)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/demo-slots", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag header")
	}

	var slots []slot.Slot
	if err := json.Unmarshal(w.Body.Bytes(), &slots); err != nil || len(slots) != 1 || slots[0].Booked != 1 {
		t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
	}

	req := httptest.NewRequest(http.MethodGet, "/demo-slots", nil)
	req.Header.Set("If-None-Match", "W/"+etag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)

	if w2.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want 304", w2.Code)
	}
}

func TestListSlotsHandler_StorageError(t *testing.T) {
	fake := &fakeReservations{
		listSlotsFn: func(ctx context.Context) ([]slot.Slot, error) {
			return nil, fmt.Errorf("%w: timeout", reservation.ErrStorage)
		},
	}

	h := handlers.NewSlotsHandler(fake, discard)
	r := setupRouter(http.MethodGet, "/demo-slots", h.ListSlots)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/demo-slots", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500", w.Code)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestReadyz(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{err: nil, want: http.StatusOK},
		{err: errors.New("down"), want: http.StatusServiceUnavailable},
	} {
		h := handlers.NewHealthHandler(fakePinger{err: tc.err})
		r := setupRouter(http.MethodGet, "/readyz", h.Readyz)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if w.Code != tc.want {
			t.Fatalf("ping err %v: got %d want %d", tc.err, w.Code, tc.want)
		}
	}
}
