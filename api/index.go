package handler

import (
	"net/http"

	"github.com/wadjakorntonsri/collection-sorter/pkg/adapters/handler"
	"github.com/wadjakorntonsri/collection-sorter/pkg/adapters/metrics"
	"github.com/wadjakorntonsri/collection-sorter/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/collection-sorter/pkg/config"
	"github.com/wadjakorntonsri/collection-sorter/pkg/core/services"
	"github.com/wadjakorntonsri/collection-sorter/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	log := logger.Must(cfg.AppEnv)

	// Note: On Vercel, a local sqlite file is ephemeral unless DATABASE_URL points at Turso
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		panic(err)
	}

	recorder, err := metrics.New(metrics.Options{})
	if err != nil {
		panic(err)
	}

	service := services.NewOrderService(repo, log)
	mux = handler.NewRouter(cfg, service, log, recorder, nil)
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
