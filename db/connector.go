// Package db provisions MongoDB connections for recovered credentials.
// Connection attempts are bounded by a short ping timeout so a bad login
// or a forged token cannot stall the request pipeline.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/text/unicode/norm"

	"github.com/dkettner/mongoweb/config"
)

// ErrOriginNotAllowed is returned when the request origin fails the
// configured allow-list.
var ErrOriginNotAllowed = errors.New("db: request origin not allowed")

// ErrMissingCredentials is returned when authorization is enabled but
// the username or password is empty.
var ErrMissingCredentials = errors.New("db: username and password required")

const defaultPingTimeout = time.Second

// Connector opens credential-scoped MongoDB connections according to
// the configured target.
type Connector struct {
	cfg         config.Config
	pingTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Connector.
type Option func(*Connector)

// WithPingTimeout overrides the connection liveness check timeout.
func WithPingTimeout(d time.Duration) Option {
	return func(c *Connector) { c.pingTimeout = d }
}

// WithLogger sets the logger for connection failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) { c.logger = logger }
}

// NewConnector creates a Connector for the given configuration.
func NewConnector(cfg config.Config, opts ...Option) *Connector {
	c := &Connector{
		cfg:         cfg,
		pingTimeout: defaultPingTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect validates the request origin against the allow-list, then
// opens and pings a connection scoped to the given credentials. Callers
// own the returned client and must Disconnect it.
func (c *Connector) Connect(ctx context.Context, creds *Credentials, originIP string) (*mongo.Client, error) {
	if !c.cfg.OriginAllowed(originIP) {
		c.logger.Error("connection refused, origin not allowed",
			slog.String("username", creds.Username),
			slog.String("origin_ip", originIP))
		return nil, ErrOriginNotAllowed
	}

	pwBuf, err := creds.openPassword()
	if err != nil {
		return nil, err
	}
	password := ""
	if pwBuf != nil {
		password = pwBuf.String()
	}
	if c.cfg.UseAuthorization && (creds.Username == "" || password == "") {
		if pwBuf != nil {
			pwBuf.Destroy()
		}
		return nil, ErrMissingCredentials
	}

	uri := c.ConnectionString(creds.Username, password)
	if pwBuf != nil {
		pwBuf.Destroy()
	}

	client, err := c.dial(ctx, uri)
	if err != nil {
		c.logger.Error("connection failed",
			slog.String("username", creds.Username),
			slog.String("origin_ip", originIP))
		return nil, err
	}
	return client, nil
}

// ConnectFixed opens a connection to the fixed target used when
// authorization is disabled.
func (c *Connector) ConnectFixed(ctx context.Context) (*mongo.Client, error) {
	return c.dial(ctx, c.ConnectionString("", ""))
}

func (c *Connector) dial(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("db: connecting: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return client, nil
}

// Disconnect releases a client obtained from Connect or ConnectFixed.
func (c *Connector) Disconnect(ctx context.Context, client *mongo.Client) {
	if client == nil {
		return
	}
	if err := client.Disconnect(ctx); err != nil {
		c.logger.Warn("disconnect failed", slog.String("error", err.Error()))
	}
}

// ConnectionString assembles the MongoDB URI. A configured custom string
// wins outright; otherwise credentials are embedded only when
// authorization is enabled.
func (c *Connector) ConnectionString(username, password string) string {
	if c.cfg.CustomString != "" {
		return c.cfg.CustomString
	}
	if !c.cfg.UseAuthorization {
		return fmt.Sprintf("mongodb://%s:%s", c.cfg.DBHost, c.cfg.DBPort)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s",
		sanitize(username), sanitize(password), c.cfg.DBHost, c.cfg.DBPort, c.cfg.DBRule)
}

// sanitize normalizes and escapes a credential for URI embedding.
func sanitize(input string) string {
	return url.QueryEscape(norm.NFKD.String(strings.TrimSpace(input)))
}

// IsUserAdmin reports whether the user is registered in the admin
// database, via the usersInfo command.
func (c *Connector) IsUserAdmin(ctx context.Context, client *mongo.Client, username string) (bool, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	var result bson.M
	cmd := bson.D{{Key: "usersInfo", Value: username}}
	if err := client.Database("admin").RunCommand(cmdCtx, cmd).Decode(&result); err != nil {
		return false, fmt.Errorf("db: usersInfo for %q: %w", username, err)
	}
	users, ok := result["users"].(bson.A)
	return ok && len(users) > 0, nil
}
