// Package app composes the knowledge base service: it builds every repository
// and service from configuration and places the session gate in front of the API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/promptbank/internal/infra/audit"
	"github.com/mkrupp/promptbank/internal/infra/config"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	http_ "github.com/mkrupp/promptbank/internal/infra/transport/http"
	"github.com/mkrupp/promptbank/internal/repo/blob"
	"github.com/mkrupp/promptbank/internal/repo/record"
	"github.com/mkrupp/promptbank/internal/repo/revocation"
	"github.com/mkrupp/promptbank/internal/svc/authsvc"
	"github.com/mkrupp/promptbank/internal/svc/mediasvc"
	"github.com/mkrupp/promptbank/internal/svc/promptsvc"
	"github.com/mkrupp/promptbank/internal/svc/ratelimit"
	"github.com/mkrupp/promptbank/internal/svc/toolsvc"
	"github.com/mkrupp/promptbank/internal/svc/uploadsvc"
	"github.com/mkrupp/promptbank/internal/util/clock"
)

const (
	// EnvNamespace is the environment variable prefix of the service.
	EnvNamespace = "PROMPTBANK_KBSVC"

	loginPath = "/api/auth/login"
)

// ServiceConfig is the complete environment configuration of the service binary.
type ServiceConfig struct {
	config.EnvConfig

	Log  logging.LoggerConfig       `envPrefix:"LOG_"`
	App  Config
	HTTP http_.HTTPTransportConfig `envPrefix:"HTTP_"`
}

// LoadConfig parses and validates the service configuration from the environment.
func LoadConfig(ctx context.Context) (ServiceConfig, error) {
	var cfg ServiceConfig

	if err := config.Parse(ctx, &cfg, EnvNamespace); err != nil {
		return ServiceConfig{}, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Config holds the configuration of every component of the service.
type Config struct {
	Auth       authsvc.AuthConfig                  `envPrefix:"AUTH_"`
	RateLimit  ratelimit.Config                    `envPrefix:"RATELIMIT_"`
	Upload     uploadsvc.Config                    `envPrefix:"UPLOAD_"`
	Store      record.StoreConfig                  `envPrefix:"STORE_"`
	Blob       blob.FileSystemBlobRepositoryConfig `envPrefix:"BLOB_"`
	Media      mediasvc.Config                     `envPrefix:"MEDIA_"`
	Revocation revocation.RedisRepositoryConfig    `envPrefix:"REVOCATION_"`
}

// Warnings returns the non-fatal weaknesses of cfg.
func (cfg Config) Warnings() []string {
	return cfg.Auth.Warnings()
}

// App is the composed HTTP handler of the service.
//
// Routes:
//   - POST /api/auth/login is the only public API endpoint
//   - /api/... requires a valid session cookie (auth verify and logout, prompts, tools, use cases)
//   - GET /media/{bucket}/{name} serves stored objects publicly.
type App struct {
	handler http.Handler
	limiter *ratelimit.Limiter
	records record.Repository
	revoked revocation.Repository
	log     logging.Logger
}

var _ http_.HTTPTransport = (*App)(nil)

// New builds the service from cfg. Configuration warnings are reported as
// security events. The returned App must be closed.
func New(ctx context.Context, cfg Config, clk clock.Clock) (_ *App, err error) {
	if clk == nil {
		clk = clock.Real{}
	}

	app := &App{log: logging.GetLogger("app")}

	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	events := audit.NewSecurityLog(logging.GetLogger("security"), clk)
	for _, warning := range cfg.Warnings() {
		events.Log(ctx, audit.EventConfigWarning, audit.Details{"warning": warning})
	}

	if app.records, err = record.NewSQLRepository(ctx, cfg.Store, clk); err != nil {
		return nil, fmt.Errorf("new record repository: %w", err)
	}

	if app.revoked, err = revocation.New(ctx, cfg.Revocation); err != nil {
		return nil, fmt.Errorf("new revocation repository: %w", err)
	}

	storage, err := mediasvc.NewBlobStorage(ctx,
		blob.FileSystemBlobRepositoryFactory(cfg.Blob),
		cfg.Media,
		clk,
		mediasvc.BucketPromptResults,
		mediasvc.BucketToolExamples,
	)
	if err != nil {
		return nil, fmt.Errorf("new media storage: %w", err)
	}

	app.limiter = ratelimit.NewLimiter(cfg.RateLimit, clk)

	authSvc, err := newAuthService(cfg.Auth, clk, app.limiter, app.revoked, events)
	if err != nil {
		return nil, err
	}

	uploads := uploadsvc.NewService(storage, events, cfg.Upload)

	authTransport := authsvc.NewHTTPTransport(authSvc, cfg.Auth.Cookie, clk)
	promptTransport := promptsvc.NewHTTPTransport(promptsvc.NewPromptService(app.records, uploads), uploads)
	toolTransport := toolsvc.NewHTTPTransport(
		toolsvc.NewToolService(app.records, uploads),
		toolsvc.NewUseCaseService(app.records, uploads),
		uploads,
	)

	api := http.NewServeMux()
	api.Handle("/api/auth/", authTransport)
	api.Handle("/api/prompts", promptTransport)
	api.Handle("/api/tools", toolTransport)
	api.Handle("/api/use-cases", toolTransport)
	api.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		http_.WriteError(w, http.StatusNotFound, "Not found")
	})

	mux := http.NewServeMux()
	mux.Handle("POST "+loginPath, authTransport)
	mux.Handle("/api/", http_.AuthorizingMiddleware(api, authSvc.Tokens(), events, app.log))
	mux.Handle("/media/", mediasvc.NewHTTPTransport(storage))

	app.handler = mux

	return app, nil
}

func newAuthService(
	cfg authsvc.AuthConfig,
	clk clock.Clock,
	limiter authsvc.Limiter,
	revoked revocation.Repository,
	events *audit.SecurityLog,
) (*authsvc.AuthService, error) {
	signer, err := authsvc.NewHMACSigner(cfg.Secret, clk)
	if err != nil {
		return nil, fmt.Errorf("new signer: %w", err)
	}

	password, err := authsvc.NewPasswordVerifier(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("new password verifier: %w", err)
	}

	tokens := authsvc.NewTokenService(signer, revoked, cfg.TokenTTL)

	return authsvc.NewAuthService(tokens, password, limiter, events), nil
}

// ServeHTTP implements http.Handler.
func (app *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	app.handler.ServeHTTP(w, r)
}

// Close stops the rate limiter and releases the repositories.
func (app *App) Close() error {
	var errs []error

	if app.limiter != nil {
		app.limiter.Close()
	}

	if app.records != nil {
		if err := app.records.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close record repository: %w", err))
		}
	}

	if app.revoked != nil {
		if err := app.revoked.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close revocation repository: %w", err))
		}
	}

	return errors.Join(errs...)
}
