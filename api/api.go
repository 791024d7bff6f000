package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dkettner/mongoweb/config"
	"github.com/dkettner/mongoweb/db"
	"github.com/dkettner/mongoweb/userstorage"
)

// Connector provisions database connections for the gate and the login
// handler. *db.Connector is the production implementation; tests stub it.
type Connector interface {
	Connect(ctx context.Context, creds *db.Credentials, originIP string) (*mongo.Client, error)
	ConnectFixed(ctx context.Context) (*mongo.Client, error)
	IsUserAdmin(ctx context.Context, client *mongo.Client, username string) (bool, error)
	Disconnect(ctx context.Context, client *mongo.Client)
}

var _ Connector = (*db.Connector)(nil)

// API holds the dependencies needed by the REST handlers.
type API struct {
	cfg       config.Config
	sessions  SessionStore
	connector Connector
	storage   *userstorage.Manager
	limiter   *ipRateLimiter
	audit     *auditLogger
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events. If not set, a
// default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithAlertFunc installs a callback for login-failure spike alerts.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.audit.metrics = newMetricsCollector(fn)
	}
}

// New creates a new API instance.
func New(cfg config.Config, sessions SessionStore, connector Connector, storage *userstorage.Manager, opts ...Option) *API {
	a := &API{
		cfg:       cfg,
		sessions:  sessions,
		connector: connector,
		storage:   storage,
		limiter:   newIPRateLimiter(),
		audit:     newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil))),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/redoc",
	}, nil))

	r.Post("/auth/otp", a.CreateOTP)
	r.Get("/auth/logout", a.Logout)
	r.With(a.AuthMiddleware, a.RequireAdmin).Get("/auth/sessions", a.ListSessions)

	return r
}
