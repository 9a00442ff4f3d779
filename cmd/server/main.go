// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

// Command server runs the Voxgate gatekeeper in front of the
// conversational API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxgate/voxgate/internal/api"
	"github.com/voxgate/voxgate/internal/auth"
	"github.com/voxgate/voxgate/internal/authz"
	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/csrf"
	"github.com/voxgate/voxgate/internal/gate"
	"github.com/voxgate/voxgate/internal/logging"
	"github.com/voxgate/voxgate/internal/ratelimit"
	"github.com/voxgate/voxgate/internal/store"
	"github.com/voxgate/voxgate/internal/supervisor"
	"github.com/voxgate/voxgate/internal/supervisor/services"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (overrides "+config.ConfigPathEnvVar+")")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxgate %s (commit %s, built %s)\n", version, commit, buildDate)
		return
	}

	if err := run(*configPath); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Str("ratelimit_store", cfg.RateLimit.Store).
		Msg("Starting Voxgate")

	users := store.NewMemoryStore()

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Security.Issuer,
		Store:  users,
	})
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}

	counters, err := openCounterStore(cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("open counter store: %w", err)
	}
	limiter := ratelimit.NewLimiter(counters)
	defer func() {
		if cerr := limiter.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("Failed to close counter store")
		}
	}()

	roles, err := authz.NewRoleResolver(nil)
	if err != nil {
		return fmt.Errorf("create role resolver: %w", err)
	}

	guard, err := csrf.NewGuard([]byte(cfg.Security.CSRFSecret), cfg.Security.CSRFTokenTTL)
	if err != nil {
		return fmt.Errorf("create csrf guard: %w", err)
	}

	keeper, err := gate.New(gate.Config{
		Verifier:       verifier,
		Limiter:        limiter,
		Policies:       ratelimit.NewPolicySet(cfg.RateLimit),
		Authz:          authz.NewGate(roles),
		CSRF:           guard,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		return fmt.Errorf("create gatekeeper: %w", err)
	}

	router := buildRouter(cfg, keeper)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree := supervisor.NewTree(slogger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(services.NewSweeperService(limiter, cfg.RateLimit.SweepInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}

// openCounterStore selects the rate-limit counter backend.
func openCounterStore(cfg config.RateLimitConfig) (ratelimit.CounterStore, error) {
	switch cfg.Store {
	case "badger":
		return ratelimit.OpenBadgerStore(cfg.BadgerPath)
	default:
		return ratelimit.NewMemoryStore(), nil
	}
}

// buildRouter assembles the route families behind their protection
// profiles. Only /healthz and /metrics bypass the gatekeeper.
func buildRouter(cfg *config.Config, keeper *gate.Gatekeeper) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(logging.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", auth.AuthorizationHeader, auth.APIKeyHeader, gate.CSRFHeader},
		ExposedHeaders: []string{logging.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.WriteSuccess(w, r, map[string]string{"status": "ok", "version": version})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Authentication-adjacent endpoints share the tight auth class.
		r.Group(func(r chi.Router) {
			r.Use(keeper.Protect(gate.Route{Class: ratelimit.ClassAuth}))
			r.Get("/auth/csrf", keeper.CSRFTokenHandler())
			r.Get("/me", meHandler)
		})

		// Chat requires a paid subscription.
		r.Group(func(r chi.Router) {
			r.Use(keeper.Protect(gate.Route{
				Require: authz.Requirement{
					Tiers: []auth.Tier{auth.TierPlus, auth.TierPro, auth.TierEnterprise},
				},
			}))
			r.Post("/chat/completions", upstreamHandler("chat"))
		})

		// Voice sessions are pro and up, metered on the realtime class.
		r.Group(func(r chi.Router) {
			r.Use(keeper.Protect(gate.Route{
				Class: ratelimit.ClassRealtime,
				Require: authz.Requirement{
					Tiers: []auth.Tier{auth.TierPro, auth.TierEnterprise},
				},
			}))
			r.Post("/voice/sessions", upstreamHandler("voice"))
		})

		// Billing mutations require a CSRF token on top of credentials.
		r.Group(func(r chi.Router) {
			r.Use(keeper.Protect(gate.Route{CSRF: true}))
			r.Post("/billing/portal", upstreamHandler("billing"))
			r.Put("/billing/payment-method", upstreamHandler("billing"))
		})

		// Operator surface.
		r.Group(func(r chi.Router) {
			r.Use(keeper.Protect(gate.Route{
				Require: authz.Requirement{Roles: []auth.Role{auth.RoleAdmin}},
			}))
			r.Get("/admin/subjects", upstreamHandler("admin"))
		})
	})

	return r
}

// meHandler returns the caller's own principal, mainly for client
// debugging and smoke tests.
func meHandler(w http.ResponseWriter, r *http.Request) {
	p := gate.PrincipalFromContext(r.Context())
	if p == nil {
		api.WriteUnauthorized(w, r)
		return
	}
	api.WriteSuccess(w, r, p)
}

// upstreamHandler stands in for the proxied application behind the
// gate. The real deployment swaps this for a reverse proxy to the
// upstream service.
func upstreamHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := gate.PrincipalFromContext(r.Context())
		api.WriteSuccess(w, r, map[string]interface{}{
			"service": service,
			"subject": p.SubjectID,
		})
	}
}
