// Package httpapi is the HTTP surface of the service: routing, auth
// middleware and request/response shaping over the domain services.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"accessdesk.org/internal/auth"
	"accessdesk.org/internal/catalog"
	"accessdesk.org/internal/obs"
	"accessdesk.org/internal/request"
)

const basePath = "/api/v1"

// ReadyProbe checks backing-store connectivity for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	users      *auth.UserService
	catalog    *catalog.Service
	requests   *request.Service
	readyProbe ReadyProbe
	version    string

	rateBurst  int
	ratePerSec int
	maxBody    int64
}

type Option func(*API)

// WithRateLimit overrides the default per-IP limiter settings.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		a.rateBurst = burst
		a.ratePerSec = perSecond
	}
}

// WithMaxBodyBytes overrides the request body size cap.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		a.maxBody = n
	}
}

func New(authSvc *auth.Service, users *auth.UserService, cat *catalog.Service, requests *request.Service, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		users:      users,
		catalog:    cat,
		requests:   requests,
		readyProbe: rp,
		version:    version,
		rateBurst:  20,
		ratePerSec: 10,
		maxBody:    1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc(basePath+"/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// domain routes
	a.mux.HandleFunc(basePath+"/auth/", a.handleAuth)
	a.mux.HandleFunc(basePath+"/requests", a.handleRequestsCollection)
	a.mux.HandleFunc(basePath+"/requests/", a.handleRequestResource)
	a.mux.HandleFunc(basePath+"/software", a.handleSoftwareCollection)
	a.mux.HandleFunc(basePath+"/software/", a.handleSoftwareResource)
	a.mux.HandleFunc(basePath+"/users", a.handleUsersCollection)
	a.mux.HandleFunc(basePath+"/users/", a.handleUserResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "accessdesk-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "accessdesk-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
