package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/app"
	"github.com/Deepanshu2050/subcription-manager/internal/config"
	"github.com/Deepanshu2050/subcription-manager/internal/handlers"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (default $FINTRACK_CONFIG)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.BootstrapAdmin(ctx); err != nil {
		return err
	}
	if err := a.DB.CleanExpiredSessions(ctx); err != nil {
		log.Printf("Failed to clean expired sessions: %v", err)
	}

	h := handlers.NewHandlers(a.DB, a.Ledger, a.Budgets, a.Subscriptions, handlers.Options{
		SecureCookie: cfg.Server.SecureCookie,
		Development:  cfg.Development(),
		Location:     a.Location,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           setupRouter(h, cfg.Server.RequestTimeout.Duration),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.Scheduler.Enabled {
		sched, err := a.Scheduler()
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				log.Printf("Scheduler stop: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (%s)", cfg.Server.Addr, cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupRouter mounts the API and wraps it in the request timeout.
func setupRouter(h *handlers.Handlers, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"success":true,"message":"Finance tracker API"}` + "\n"))
	})

	if requestTimeout <= 0 {
		return mux
	}
	return http.TimeoutHandler(mux, requestTimeout, `{"success":false,"message":"Request timed out"}`)
}
