package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"appointments-api/internal/handler"
	"appointments-api/internal/middleware"
	"appointments-api/internal/model"
	"appointments-api/internal/store"
)

func setup(t *testing.T) http.Handler {
	t.Helper()
	st, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "appointments.db"))
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return handler.New(st).Routes(handler.Options{})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func list(t *testing.T, h http.Handler) []model.Appointment {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/appointments", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out []model.Appointment
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return out
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var m map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return m
}

func createAppointment(t *testing.T, h http.Handler, title string) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/appointments", map[string]any{
		"title":      title,
		"start_time": "2024-02-01T09:00:00Z",
		"end_time":   "2024-02-01T09:30:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %s: expected 201, got %d: %s", title, rec.Code, rec.Body.String())
	}
}

// ----- health -----

func TestHome(t *testing.T) {
	h := setup(t)

	rec := do(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "Backend is working!" {
		t.Errorf("body: got %q", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	h := setup(t)

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if jsonBody(t, rec)["status"] != "ok" {
		t.Error("expected status ok")
	}
}

func TestHealthzStoreDown(t *testing.T) {
	h := handler.New(brokenStore{}).Routes(handler.Options{})

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

// ----- appointment CRUD -----

func TestCreateAndList(t *testing.T) {
	h := setup(t)

	rec := do(t, h, http.MethodPost, "/appointments", map[string]any{
		"title":      "Checkup",
		"start_time": "2024-01-05T10:00:00Z",
		"end_time":   "2024-01-05T10:30:00Z",
		"doctor_id":  3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Appointment added" {
		t.Errorf("body: got %q", rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/appointments/1" {
		t.Errorf("location: got %q", loc)
	}

	apts := list(t, h)
	if len(apts) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(apts))
	}
	a := apts[0]
	if a.Title != "Checkup" {
		t.Errorf("title: got %s", a.Title)
	}
	if a.StartTime != "2024-01-05 10:00:00" {
		t.Errorf("start_time: got %s", a.StartTime)
	}
	if a.EndTime != "2024-01-05 10:30:00" {
		t.Errorf("end_time: got %s", a.EndTime)
	}
	if a.DoctorID == nil || *a.DoctorID != 3 {
		t.Errorf("doctor_id: got %v", a.DoctorID)
	}
}

func TestCreateNormalizesOffsets(t *testing.T) {
	h := setup(t)

	rec := do(t, h, http.MethodPost, "/appointments", map[string]any{
		"title":      "Offset",
		"start_time": "2024-01-05T12:00:00.250+02:00",
		"end_time":   "2024-01-05 12:30:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	a := list(t, h)[0]
	if a.StartTime != "2024-01-05 10:00:00" || a.EndTime != "2024-01-05 12:30:00" {
		t.Errorf("got %s / %s", a.StartTime, a.EndTime)
	}
	if a.DoctorID != nil {
		t.Errorf("doctor_id: expected null, got %d", *a.DoctorID)
	}
}

func TestCreateValidation(t *testing.T) {
	h := setup(t)

	tests := []struct {
		name string
		body any
	}{
		{"empty title", map[string]any{"title": "", "start_time": "2024-01-05T10:00:00Z", "end_time": "2024-01-05T11:00:00Z"}},
		{"missing title", map[string]any{"start_time": "2024-01-05T10:00:00Z", "end_time": "2024-01-05T11:00:00Z"}},
		{"missing start", map[string]any{"title": "X", "end_time": "2024-01-05T11:00:00Z"}},
		{"missing end", map[string]any{"title": "X", "start_time": "2024-01-05T10:00:00Z"}},
		{"unparseable start", map[string]any{"title": "X", "start_time": "soon", "end_time": "2024-01-05T11:00:00Z"}},
		{"malformed json", `{"title": "X",`},
		{"empty body", nil},
		{"doctor id not a number", map[string]any{"title": "X", "start_time": "2024-01-05T10:00:00Z", "end_time": "2024-01-05T11:00:00Z", "doctor_id": "three"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/appointments", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if msg := jsonBody(t, rec)["error"]; msg != "Missing required fields" {
				t.Errorf("error: got %q", msg)
			}
		})
	}

	if n := len(list(t, h)); n != 0 {
		t.Errorf("expected no rows inserted, got %d", n)
	}
}

func TestListEmpty(t *testing.T) {
	h := setup(t)

	rec := do(t, h, http.MethodGet, "/appointments", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := bytes.TrimSpace(rec.Body.Bytes()); string(got) != "[]" {
		t.Errorf("expected [], got %s", got)
	}
}

func TestUpdateAppointment(t *testing.T) {
	h := setup(t)
	createAppointment(t, h, "Follow-up")

	rec := do(t, h, http.MethodPut, "/appointments/1", map[string]string{
		"start_time": "2024-03-10T14:00:00Z",
		"end_time":   "2024-03-10T15:00:00Z",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if msg := jsonBody(t, rec)["message"]; msg != "Appointment updated successfully" {
		t.Errorf("message: got %q", msg)
	}

	a := list(t, h)[0]
	if a.StartTime != "2024-03-10 14:00:00" || a.EndTime != "2024-03-10 15:00:00" {
		t.Errorf("times not updated: %s / %s", a.StartTime, a.EndTime)
	}
	if a.Title != "Follow-up" {
		t.Errorf("title changed: %s", a.Title)
	}
}

func TestUpdateSameTimes(t *testing.T) {
	h := setup(t)
	createAppointment(t, h, "Same")

	rec := do(t, h, http.MethodPut, "/appointments/1", map[string]string{
		"start_time": "2024-02-01T09:00:00Z",
		"end_time":   "2024-02-01T09:30:00Z",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateNotFound(t *testing.T) {
	h := setup(t)
	createAppointment(t, h, "Untouched")

	for _, path := range []string{"/appointments/999", "/appointments/abc", "/appointments/-1"} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, path, map[string]string{
				"start_time": "2024-01-01T00:00:00Z",
				"end_time":   "2024-01-01T01:00:00Z",
			})
			if rec.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", rec.Code)
			}
			if msg := jsonBody(t, rec)["error"]; msg != "Appointment not found" {
				t.Errorf("error: got %q", msg)
			}
		})
	}

	a := list(t, h)[0]
	if a.StartTime != "2024-02-01 09:00:00" {
		t.Errorf("row modified: %s", a.StartTime)
	}
}

func TestUpdateValidation(t *testing.T) {
	h := setup(t)
	createAppointment(t, h, "Validate")

	tests := []struct {
		name string
		body any
	}{
		{"missing start", map[string]string{"end_time": "2024-01-01T01:00:00Z"}},
		{"missing end", map[string]string{"start_time": "2024-01-01T00:00:00Z"}},
		{"unparseable end", map[string]string{"start_time": "2024-01-01T00:00:00Z", "end_time": "later"}},
		{"malformed json", "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, "/appointments/1", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if msg := jsonBody(t, rec)["error"]; msg != "Start time and end time are required" {
				t.Errorf("error: got %q", msg)
			}
		})
	}
}

func TestDeleteAppointment(t *testing.T) {
	h := setup(t)
	createAppointment(t, h, "Keep")
	createAppointment(t, h, "Drop")

	rec := do(t, h, http.MethodDelete, "/appointments/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if msg := jsonBody(t, rec)["message"]; msg != "Appointment deleted successfully" {
		t.Errorf("message: got %q", msg)
	}

	apts := list(t, h)
	if len(apts) != 1 || apts[0].Title != "Keep" {
		t.Fatalf("expected only Keep to remain, got %+v", apts)
	}

	// second delete of the same id
	rec = do(t, h, http.MethodDelete, "/appointments/2", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on repeat delete, got %d", rec.Code)
	}
}

func TestDeleteNotFound(t *testing.T) {
	h := setup(t)
	createAppointment(t, h, "Stay")

	for _, path := range []string{"/appointments/42", "/appointments/nope"} {
		rec := do(t, h, http.MethodDelete, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
		if msg := jsonBody(t, rec)["error"]; msg != "Appointment not found" {
			t.Errorf("%s: error: got %q", path, msg)
		}
	}

	if n := len(list(t, h)); n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}

// ----- store failures -----

var errDown = errors.New("connection refused")

type brokenStore struct{}

func (brokenStore) List(context.Context) ([]model.Appointment, error) { return nil, errDown }
func (brokenStore) Create(context.Context, *model.Appointment) error  { return errDown }
func (brokenStore) UpdateTimes(context.Context, int64, string, string) error {
	return errDown
}
func (brokenStore) Delete(context.Context, int64) error { return errDown }
func (brokenStore) Ping(context.Context) error          { return errDown }
func (brokenStore) Close() error                        { return nil }

func TestStoreErrors(t *testing.T) {
	h := handler.New(brokenStore{}).Routes(handler.Options{})

	times := map[string]string{"start_time": "2024-01-01T00:00:00Z", "end_time": "2024-01-01T01:00:00Z"}
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   string
	}{
		{"list", http.MethodGet, "/appointments", nil, "connection refused"},
		{"create", http.MethodPost, "/appointments", map[string]string{
			"title": "X", "start_time": "2024-01-01T00:00:00Z", "end_time": "2024-01-01T01:00:00Z",
		}, "connection refused"},
		{"update", http.MethodPut, "/appointments/1", times, "Failed to update appointment"},
		{"delete", http.MethodDelete, "/appointments/1", nil, "Failed to delete appointment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
			if msg := jsonBody(t, rec)["error"]; msg != tt.want {
				t.Errorf("error: got %q, want %q", msg, tt.want)
			}
		})
	}

	// still serving after every failure
	if rec := do(t, h, http.MethodGet, "/", nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200 after store errors, got %d", rec.Code)
	}
}

// ----- concurrency -----

func TestConcurrentCreates(t *testing.T) {
	h := setup(t)

	const n = 20
	var wg sync.WaitGroup
	codes := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		body := fmt.Sprintf(`{"title":"concurrent-%d","start_time":"2024-05-01T08:00:00Z","end_time":"2024-05-01T09:00:00Z","doctor_id":7}`, i)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	for c := range codes {
		if c != http.StatusCreated {
			t.Errorf("expected 201, got %d", c)
		}
	}

	// overlapping slots for the same doctor are allowed
	if got := len(list(t, h)); got != n {
		t.Errorf("expected %d rows, got %d", n, got)
	}
}

// ----- cors / rate limit wiring -----

func TestCORSPreflight(t *testing.T) {
	h := handler.New(brokenStore{}).Routes(handler.Options{CORSOrigins: []string{"http://clinic.test"}})

	req := httptest.NewRequest(http.MethodOptions, "/appointments", nil)
	req.Header.Set("Origin", "http://clinic.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://clinic.test" {
		t.Errorf("allow-origin: got %q", got)
	}
}

func rateLimited(t *testing.T, trustProxy bool) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	st, err := store.NewSQLite(ctx, filepath.Join(t.TempDir(), "appointments.db"))
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return handler.New(st).Routes(handler.Options{
		TrustProxy: trustProxy,
		Limiter:    middleware.NewRateLimiter(ctx, 0.001, 1),
	})
}

func listFrom(h http.Handler, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	h := rateLimited(t, false)

	if code := listFrom(h, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("first request: got %d", code)
	}
	// a fresh header must not buy a fresh bucket
	if code := listFrom(h, "10.0.0.2"); code != http.StatusTooManyRequests {
		t.Errorf("spoofed header: expected 429, got %d", code)
	}
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	h := rateLimited(t, true)

	if code := listFrom(h, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("first client: got %d", code)
	}
	if code := listFrom(h, "10.0.0.2"); code != http.StatusOK {
		t.Errorf("second client: got %d", code)
	}
	if code := listFrom(h, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("first client again: expected 429, got %d", code)
	}
}
