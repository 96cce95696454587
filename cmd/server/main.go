/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the AstroFinance balance service. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Create API handler with services and jobs
  4. Configure HTTP router, start the job scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: astrofinance.db)
              Use ":memory:" for an in-memory database
  -scheduler  Run the background job scheduler (default: true)
  -log-level  trace|debug|info|warn|error (default: info)
  -log-format json|console (default: json)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, close the database
  4. Exit

EXAMPLES:
  ./server -db="./data/astrofinance.db"
  ./server -db=":memory:" -scheduler=false
  ./server -port=3000 -log-format=console

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background jobs
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alehcs/AstroFinance/api"
	"github.com/Alehcs/AstroFinance/logger"
	"github.com/Alehcs/AstroFinance/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "astrofinance.db", "SQLite database path")
	withScheduler := flag.Bool("scheduler", true, "run the background job scheduler")
	logLevel := flag.String("log-level", "info", "log level")
	logFormat := flag.String("log-format", "json", "log format (json or console)")
	flag.Parse()

	log := logger.New(*logLevel, *logFormat).With().Str("service", "astrofinance").Logger()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Wire handler, router, scheduler
	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler)

	scheduler := api.NewScheduler(handler)
	scheduler.Enabled = *withScheduler
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
