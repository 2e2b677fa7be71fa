package handler

import (
	"errors"
	"log"
	"net/http"
)

// ValidationError: the client omitted or garbled a required field.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError: no row matched the requested id.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// StoreError wraps a failed query. Msg is what the client sees, Err is
// what gets logged.
type StoreError struct {
	Op  string
	Msg string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// fail turns err into a JSON error body with the matching status.
func fail(w http.ResponseWriter, err error) {
	var (
		ve *ValidationError
		nf *NotFoundError
		se *StoreError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Msg)
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Msg)
	case errors.As(err, &se):
		log.Printf("%v", se)
		writeError(w, http.StatusInternalServerError, se.Msg)
	default:
		log.Printf("unhandled: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
