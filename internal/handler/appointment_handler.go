package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"appointments-api/internal/model"
	"appointments-api/internal/store"
	"appointments-api/internal/timefmt"
)

const (
	msgMissingFields = "Missing required fields"
	msgTimesRequired = "Start time and end time are required"
	msgNotFound      = "Appointment not found"
)

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	apts, err := h.store.List(r.Context())
	if err != nil {
		fail(w, &StoreError{Op: "list appointments", Msg: err.Error(), Err: err})
		return
	}
	if apts == nil {
		apts = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, apts)
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAppointmentRequest
	if err := readJSON(w, r, &req); err != nil {
		fail(w, &ValidationError{Msg: msgMissingFields})
		return
	}

	start, errStart := timefmt.Normalize(req.StartTime)
	end, errEnd := timefmt.Normalize(req.EndTime)
	if req.Title == "" || errStart != nil || errEnd != nil {
		fail(w, &ValidationError{Msg: msgMissingFields})
		return
	}

	apt := &model.Appointment{
		Title:     req.Title,
		StartTime: start,
		EndTime:   end,
		DoctorID:  req.DoctorID,
	}
	if err := h.store.Create(r.Context(), apt); err != nil {
		// the driver's message goes back verbatim
		fail(w, &StoreError{Op: "create appointment", Msg: err.Error(), Err: err})
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/appointments/%d", apt.ID))
	writeText(w, http.StatusCreated, "Appointment added")
}

func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateAppointmentRequest
	if err := readJSON(w, r, &req); err != nil {
		fail(w, &ValidationError{Msg: msgTimesRequired})
		return
	}

	start, errStart := timefmt.Normalize(req.StartTime)
	end, errEnd := timefmt.Normalize(req.EndTime)
	if errStart != nil || errEnd != nil {
		fail(w, &ValidationError{Msg: msgTimesRequired})
		return
	}

	id, ok := pathID(r)
	if !ok {
		fail(w, &NotFoundError{Msg: msgNotFound})
		return
	}

	if err := h.store.UpdateTimes(r.Context(), id, start, end); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, &NotFoundError{Msg: msgNotFound})
			return
		}
		fail(w, &StoreError{Op: "update appointment", Msg: "Failed to update appointment", Err: err})
		return
	}
	writeMessage(w, http.StatusOK, "Appointment updated successfully")
}

func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		fail(w, &NotFoundError{Msg: msgNotFound})
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, &NotFoundError{Msg: msgNotFound})
			return
		}
		fail(w, &StoreError{Op: "delete appointment", Msg: "Failed to delete appointment", Err: err})
		return
	}
	writeMessage(w, http.StatusOK, "Appointment deleted successfully")
}

// pathID reads {id}. Anything that is not a positive integer cannot name a
// row, so callers answer 404.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
