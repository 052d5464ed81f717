package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/api/handlers"
	"github.com/cloo-solutions/interviewqa/internal/api/middleware"
	"github.com/cloo-solutions/interviewqa/internal/config"
	"github.com/cloo-solutions/interviewqa/internal/server"
	"github.com/cloo-solutions/interviewqa/internal/telemetry"
	"github.com/cloo-solutions/interviewqa/internal/watch"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the interview QA API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("watch", "", "Directory to watch for PDFs (overrides IQA_WATCH_DIR)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry(cfg)
	defer shutdownTelemetry()

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}
	if dir, _ := cmd.Flags().GetString("watch"); dir != "" {
		cfg.WatchDir = dir
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")

	a, err := newApp(ctx, cfg, appOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer a.Close()

	stopSnapshots := a.startSnapshots(ctx)

	var inbox *watch.Inbox
	if cfg.WatchDir != "" {
		inbox = watch.NewInbox(cfg.WatchDir, a.ingest, watch.DefaultDebounce)
		if err := inbox.Start(ctx); err != nil {
			stopSnapshots()
			return fmt.Errorf("failed to watch %s: %w", cfg.WatchDir, err)
		}
		log.Printf("watching %s for PDFs", cfg.WatchDir)
	}

	var validator middleware.TokenValidator
	if cfg.APIToken != "" {
		validator = middleware.StaticToken(cfg.APIToken)
	} else {
		log.Println("auth: IQA_API_TOKEN not set, mutating routes are open")
	}

	kbHandler := handlers.NewKnowledgeBaseHandler(a.registry, nil)
	if a.archive != nil {
		kbHandler = handlers.NewKnowledgeBaseHandler(a.registry, a.archive)
	}

	router := server.NewRouter(server.RouterConfig{
		TokenValidator:       validator,
		CORSOrigins:          cfg.CORSOrigins,
		QAHandler:            handlers.NewQAHandler(a.qaService()),
		UploadHandler:        handlers.NewUploadHandler(a.ingest, cfg.MaxUploadBytes),
		KnowledgeBaseHandler: kbHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if inbox != nil {
		if err := inbox.Close(); err != nil {
			log.Printf("watch: close failed: %v", err)
		}
	}
	stopSnapshots()

	log.Println("server exited")
	return nil
}

// initTelemetry enables Sentry when SENTRY_DSN is set: 10% trace sampling
// in production, everything in development.
func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}
