package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"appointments-api/internal/middleware"
	"appointments-api/internal/store"
)

type Handler struct {
	store store.Store
}

func New(st store.Store) *Handler {
	return &Handler{store: st}
}

type Options struct {
	CORSOrigins []string
	// client address comes from proxy headers; the rate limiter keys on it
	TrustProxy  bool
	// nil disables rate limiting
	Limiter     *middleware.RateLimiter
}

// Routes builds the HTTP router.
func (h *Handler) Routes(opts Options) http.Handler {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLog)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{"Location", middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", h.Home)
	r.Get("/healthz", h.Healthz)

	r.Route("/appointments", func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.Limiter))
		r.Get("/", h.ListAppointments)
		r.Post("/", h.CreateAppointment)
		r.Put("/{id}", h.UpdateAppointment)
		r.Delete("/{id}", h.DeleteAppointment)
	})
	return r
}
