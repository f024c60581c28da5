package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	recommenderchat "github.com/vamu-rec/recommender-chat"
	"github.com/vamu-rec/recommender-chat/internal/handlers"
	"github.com/vamu-rec/recommender-chat/internal/logging"
	"github.com/vamu-rec/recommender-chat/internal/services"
	"github.com/vamu-rec/recommender-chat/internal/session"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, logCloser, err := logging.Init(cfg.Log, os.Stderr)
	if err != nil {
		logger.Warn("Log file disabled", slog.String("error", err.Error()))
	}
	defer logCloser.Close()

	backend := services.NewBackend(services.BackendConfig{
		BaseURL:       cfg.BaseURL,
		HTTPClient:    &http.Client{},
		RequestClient: &http.Client{Timeout: cfg.RequestTimeout},
		Logger:        logger,
	})

	relay := handlers.NewRelay(logger)
	chat := session.New(backend, cfg.decoder(),
		session.WithLogger(logger),
		session.WithObserver(relay.Publish),
	)

	m, err := handlers.NewMain(backend, chat, relay, handlers.Options{
		HistoryPageSize: cfg.HistoryPageSize,
		RequestTimeout:  cfg.RequestTimeout,
		HealthInterval:  cfg.HealthInterval,
	}, logger)
	if err != nil {
		panic(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(recommenderchat.StaticFS, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/chats/cancel", m.HandleCancel)
	mux.HandleFunc("/chats/clear", m.HandleClear)
	mux.HandleFunc("/messages", m.HandleMessage)
	mux.HandleFunc("/model", m.HandleModel)
	mux.HandleFunc("/history", m.HandleHistory)
	mux.HandleFunc("/history/load", m.HandleLoad)
	mux.HandleFunc("/health", m.HandleHealth)
	mux.HandleFunc("/sse/messages", m.HandleSSE)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("error", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			slog.String("addr", srv.Addr),
			slog.String("backend", backend.BaseURL()),
			slog.String("transport", cfg.Transport))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", slog.String("error", err.Error()))
		}

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("error", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("error", err.Error()))
			}
		}
	}
}

// readConfig loads the configuration file named by RECOMMENDER_CHAT_CONFIG, or config.yaml in the user
// config directory. A missing file means the defaults.
func readConfig() (config, error) {
	cfgFilePath := os.Getenv("RECOMMENDER_CHAT_CONFIG")
	if cfgFilePath == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return config{}, fmt.Errorf("error getting user config dir: %w", err)
		}
		cfgFilePath = filepath.Join(cfgDir, "recommender-chat", "config.yaml")
	}

	cfgFile, err := os.Open(cfgFilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return loadConfig(strings.NewReader(""))
	}
	if err != nil {
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	return loadConfig(cfgFile)
}
