package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/collection-sorter/pkg/adapters/handler"
	"github.com/wadjakorntonsri/collection-sorter/pkg/adapters/metrics"
	"github.com/wadjakorntonsri/collection-sorter/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/collection-sorter/pkg/config"
	"github.com/wadjakorntonsri/collection-sorter/pkg/core/services"
	"github.com/wadjakorntonsri/collection-sorter/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Must(cfg.AppEnv)
	defer log.Sync()

	// Initialize Repository
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer repo.Close()

	recorder, err := metrics.New(metrics.Options{})
	if err != nil {
		log.Fatal("failed to register metrics", zap.Error(err))
	}

	// Initialize Service
	service := services.NewOrderService(repo, log)

	// Initialize Router
	mux := handler.NewRouter(cfg, service, log, recorder, nil)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server stopped")
}
