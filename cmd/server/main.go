package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/kaijie-yu/google-ui/internal/api"
	"github.com/kaijie-yu/google-ui/internal/auth"
	"github.com/kaijie-yu/google-ui/internal/config"
	"github.com/kaijie-yu/google-ui/internal/engine"
	"github.com/kaijie-yu/google-ui/internal/logging"
	"github.com/kaijie-yu/google-ui/internal/mcp"
	"github.com/kaijie-yu/google-ui/internal/repository"
	"github.com/kaijie-yu/google-ui/internal/seed"
	"github.com/kaijie-yu/google-ui/internal/services"
	"github.com/kaijie-yu/google-ui/internal/tls"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "autoflow-server",
		Short:        "Serve the workflow builder API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml if present)")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		"config_file", cfg.ConfigFile,
		"storage", cfg.Storage.Driver,
		"backend_url", cfg.Backend.URL,
		"okta_domain", cfg.Auth.OktaDomain,
		"swagger_client_id", cfg.Auth.SwaggerClientID,
	)
	if cfg.OIDCEnabled() && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("Swagger client ID matches the backend client ID; PKCE from Swagger UI will fail if the backend client requires a secret")
	}

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	if cfg.Storage.Seed {
		fixtures, err := seed.Default()
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, repo, fixtures, time.Now(), logger); err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
	}

	var backend services.AutomationBackend
	if cfg.Backend.URL != "" {
		backend = services.NewHTTPAutomationClient(cfg.Backend.URL, cfg.Backend.Timeout)
	}

	mode, err := engine.ParseRunMode(cfg.Execution.DefaultMode)
	if err != nil {
		return fmt.Errorf("execution.default_mode: %w", err)
	}
	engineLogger := logger.With("component", "engine")
	session := engine.NewSession(engine.Options{
		Directory: repo,
		Store:     repo,
		Backend:   backend,
		Timing: engine.Timing{
			StepDelay:     cfg.Execution.StepDelay,
			SettleDelay:   cfg.Execution.SettleDelay,
			FallbackGrace: cfg.Execution.FallbackGrace,
		},
		Mode:   mode,
		Logger: engineLogger,
		OnTransition: func(from, to engine.RunState) {
			engineLogger.Debug("run state changed", "from", from, "to", to)
		},
	})
	logger.Info("Engine initialized", "mode", mode)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	e.Use(otelecho.Middleware("autoflow"))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.POST("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	api.RegisterHandlers(apiGroup, api.NewHandler(repo, session, logger))
	logger.Info("REST API handlers mounted", "auth_mode", authz.Mode())

	mcpServer := mcp.NewServer(repo, session)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(authz.RequireAuth(mcpHandlers)))
	logger.Info("MCP protocol handlers mounted")

	e.GET("/openapi.yaml", api.SpecHandler(cfg.Auth.OktaDomain))
	e.GET("/docs", api.SwaggerHandler(cfg.Auth.SwaggerClientID, auth.AllScopes))
	e.GET("/docs/oauth2-redirect.html", api.OAuth2RedirectHandler())

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		serverErrors <- serve(server, cfg, logger)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("Server close error", "error", err)
		}
	}

	// A started run always completes; give it the rest of the shutdown window.
	runDone := make(chan struct{})
	go func() {
		session.Wait()
		close(runDone)
	}()
	select {
	case <-runDone:
	case <-shutdownCtx.Done():
		logger.Warn("Run still in progress at shutdown")
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func serve(server *http.Server, cfg *config.Config, logger *logging.Logger) error {
	if !cfg.TLS.Enable {
		return server.ListenAndServe()
	}
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return errors.New("TLS enabled but cert/key file not provided")
	}
	if len(cfg.TLS.Hostnames) > 0 {
		created, err := tls.EnsureSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			return fmt.Errorf("failed to generate self-signed cert: %w", err)
		}
		if created {
			logger.Info("Generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
		}
	}
	return server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
}

// openRepository returns the configured store and a function releasing it.
func openRepository(ctx context.Context, cfg *config.Config, logger *logging.Logger) (repository.Repository, func(), error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		logger.Info("Using in-memory storage")
		return repository.NewMemoryStore(), func() {}, nil
	case "postgres":
		logger.Debug("Initializing database connection")
		pool, err := repository.NewPool(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("database initialization failed: %w", err)
		}
		store := repository.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("Database connected", "host", cfg.DB.Host, "name", cfg.DB.Name)
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
