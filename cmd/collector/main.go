package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/social-ingest/internal/config"
	"github.com/pulsewatch/social-ingest/internal/connectors"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting social collector")

	registry := connectors.NewRegistry()
	registry.Register(connectors.NewTwitter(cfg.TwitterBearerToken, cfg.Privacy))
	registry.Register(connectors.NewReddit(cfg.RedditClientID, cfg.RedditClientSecret, cfg.Privacy))
	registry.Register(connectors.NewYouTube(cfg.YouTubeAPIKey, cfg.Privacy))
	registry.Register(connectors.NewInstagram(cfg.InstagramAccessToken, cfg.Privacy))
	registry.Register(connectors.NewTelegram(cfg.TelegramBotToken, cfg.Privacy))

	for _, c := range registry.All() {
		if c.IsConfigured() {
			logrus.Infof("Connector %s configured", c.PlatformName())
		} else {
			logrus.Warnf("Connector %s missing credentials, registered but disabled", c.PlatformName())
		}
	}

	// HTTP surface for health checks and connector status
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/api/v1/connectors", connectorsHandler(registry)).Methods("GET")
	router.HandleFunc("/api/v1/connectors/{platform}/ratelimit", rateLimitHandler(registry)).Methods("GET")
	router.HandleFunc("/api/v1/connectors/{platform}/requirements", requirementsHandler(registry)).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func connectorsHandler(registry *connectors.Registry) http.HandlerFunc {
	type connectorStatus struct {
		Platform   string `json:"platform"`
		Configured bool   `json:"configured"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var statuses []connectorStatus
		for _, c := range registry.All() {
			statuses = append(statuses, connectorStatus{
				Platform:   c.PlatformName(),
				Configured: c.IsConfigured(),
			})
		}
		writeJSON(w, statuses)
	}
}

func rateLimitHandler(registry *connectors.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := registry.Get(mux.Vars(r)["platform"])
		if !ok {
			http.Error(w, `{"error":"unknown platform"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, c.RateLimitStatus())
	}
}

func requirementsHandler(registry *connectors.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := registry.Get(mux.Vars(r)["platform"])
		if !ok {
			http.Error(w, `{"error":"unknown platform"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, c.ConfigRequirements())
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}
