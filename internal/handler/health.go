package handler

import (
	"context"
	"log"
	"net/http"
	"time"
)

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "Backend is working!")
}

// Healthz reports whether the store answers a ping.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		log.Printf("healthz: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
