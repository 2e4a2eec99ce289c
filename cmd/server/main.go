/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the vacation workflow server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load the YAML config
  2. Build the zap logger
  3. Initialize the SQLite store
  4. Wire optional adapters (mail, calendar, limiter) per config
  5. Create the engine, handler, and router
  6. Start the maintenance scheduler
  7. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to the YAML config file (default: vacation.yaml)
  -listen  Override the configured listen address
  -db      Override the configured SQLite database path
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, close the database
  4. Exit

EXAMPLES:
  # Run with defaults, no config file needed
  ./server

  # Run with a config file and in-memory database
  ./server -config=./deploy/vacation.yaml -db=":memory:"

SEE ALSO:
  - config/config.go: Configuration schema
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/oauth2"

	"github.com/warp/vacation-engine/api"
	"github.com/warp/vacation-engine/calendar"
	"github.com/warp/vacation-engine/config"
	"github.com/warp/vacation-engine/limiter"
	"github.com/warp/vacation-engine/mail"
	"github.com/warp/vacation-engine/store/sqlite"
	"github.com/warp/vacation-engine/vacation"
)

func main() {
	// Flags override the config file.
	configPath := flag.String("config", "vacation.yaml", "YAML config path")
	listen := flag.String("listen", "", "listen address override")
	dbPath := flag.String("db", "", "SQLite database path override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Optional adapters
	mailer, err := buildMailer(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize mailer", zap.Error(err))
	}
	cal, err := buildCalendar(cfg)
	if err != nil {
		log.Fatal("failed to initialize calendar", zap.Error(err))
	}
	rate := buildLimiter(cfg, log)

	roster := vacation.NewCachedRoster(store, cfg.Jobs.RosterTTL.Duration)

	engine := vacation.NewEngine(vacation.Config{
		MinAdvanceNoticeDays: cfg.Workflow.MinAdvanceNoticeDays,
		EnforceBalance:       cfg.Workflow.EnforceBalance,
		LockTimeout:          cfg.Workflow.LockTimeout.Duration,
		RateWindow:           cfg.Workflow.RateWindow.Duration,
	}, vacation.Deps{
		Store:     store,
		Directory: store,
		Roster:    roster,
		Mailer:    mailer,
		Calendar:  cal,
		Limiter:   rate,
		Log:       log,
	})

	// HTTP layer
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration)
	handler := api.NewHandler(engine, auth, log)
	router := api.NewRouter(handler, auth)

	// Background maintenance
	sched, err := api.NewScheduler(engine, roster, cfg.Jobs.ReconcileSchedule, log)
	if err != nil {
		log.Fatal("failed to initialize scheduler", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", cfg.Listen))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// buildMailer returns nil when no SMTP host is configured; the engine
// then skips notifications entirely.
func buildMailer(cfg config.Config, log *zap.Logger) (vacation.Mailer, error) {
	if cfg.SMTP.Host == "" {
		return nil, nil
	}
	return mail.NewSMTP(mail.Options{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, log)
}

func buildCalendar(cfg config.Config) (vacation.CalendarAdapter, error) {
	switch cfg.Calendar.Mode {
	case "ics":
		return calendar.NewICSFile(cfg.Calendar.ICSPath), nil
	case "google":
		tok, err := loadToken(cfg.Calendar.TokenFile)
		if err != nil {
			return nil, err
		}
		return calendar.NewGoogle(context.Background(), cfg.Calendar.CalendarID,
			oauth2.StaticTokenSource(tok))
	default:
		return nil, nil
	}
}

// loadToken reads a JSON-encoded OAuth2 token, the format the Google
// quickstart flow writes.
func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar token %q: %w", path, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse calendar token %q: %w", path, err)
	}
	return &tok, nil
}

// buildLimiter prefers Redis when configured so the budget is shared
// across instances; otherwise an in-process window limiter applies.
func buildLimiter(cfg config.Config, log *zap.Logger) vacation.RateLimiter {
	if cfg.Workflow.RateLimit <= 0 {
		return nil
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Info("rate limiter using redis", zap.String("addr", cfg.Redis.Addr))
		return limiter.NewRedis(client, cfg.Workflow.RateLimit, cfg.Workflow.RateWindow.Duration)
	}
	return vacation.NewWindowLimiter(cfg.Workflow.RateLimit, cfg.Workflow.RateWindow.Duration)
}
