// Package httpx contains the loopback JSON API that exposes the journal to an
// external front end. It maps HTTP requests to the application service while
// enforcing size limits, security headers and error translation.
// Handlers are split across files (entries.go, procedures.go, health.go, errors.go).
package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/haukened/quill/internal/app"
	"github.com/haukened/quill/internal/domain"
	"github.com/haukened/quill/internal/metrics"
)

// PasswordHeader carries the journal password on every entry request.
const PasswordHeader = "X-Quill-Password"

// ServicePort abstracts the subset of app.Service used by the HTTP layer.
// It is satisfied by *app.Service in production and mocked in tests.
type ServicePort interface {
	Location() string
	List() ([]domain.Entry, error)
	ListYear(year int) ([]domain.Entry, error)
	Read(name, password string) (string, error)
	Write(name, content, password string) error
	CreateNewWithMood(date time.Time, mood, password string) (domain.Entry, error)
	VerifyPassword(password string) error
	Rekey(ctx context.Context, oldPassword, newPassword string) (app.RekeyResult, error)
	Migrate(ctx context.Context, target string) (app.MigrateResult, error)
}

// Handler wires HTTP endpoints to the application service.
// It is safe for concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Service   ServicePort
	MaxBody   int64                       // request body limit (0 disables)
	Readiness func(context.Context) error // optional readiness probe
	Metrics   metrics.SnapshotProvider    // optional, mounts /api/metrics
	Logger    *slog.Logger
	Now       func() time.Time

	// mu serializes mutations against each other and against reads; a
	// migration moves files out from under concurrent readers.
	mu sync.RWMutex
}

// New returns a configured Handler.
// svc: application service port implementation.
// maxBody: maximum allowed request body size (0 disables extra check).
// readiness: optional probe function for /readyz (nil => always ready).
func New(svc ServicePort, maxBody int64, readiness func(context.Context) error) *Handler {
	return &Handler{Service: svc, MaxBody: maxBody, Readiness: readiness}
}

// Router constructs and returns an http.Handler with all routes mounted and
// the correlation and security headers middleware applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /readyz", h.handleReady)
	mux.HandleFunc("GET /api/entries", h.handleList)
	mux.HandleFunc("POST /api/entries", h.handleCreate)
	mux.HandleFunc("GET /api/entries/{name}", h.handleRead)
	mux.HandleFunc("PUT /api/entries/{name}", h.handleWrite)
	mux.HandleFunc("POST /api/verify", h.handleVerify)
	mux.HandleFunc("POST /api/rekey", h.handleRekey)
	mux.HandleFunc("POST /api/migrate", h.handleMigrate)
	if h.Metrics != nil {
		mux.Handle("GET /api/metrics", metrics.Handler(h.Metrics))
	}
	return CorrelationIDMiddleware(h.secureHeaders(mux))
}

// secureHeaders middleware adds standard security & cache control headers.
// Decrypted entries pass through here, so nothing may be cached.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
