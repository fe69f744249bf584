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

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/adapters"
	"github.com/ua-proxy-go/internal/config"
	"github.com/ua-proxy-go/internal/handlers"
	"github.com/ua-proxy-go/internal/i18n"
	"github.com/ua-proxy-go/internal/middleware"
	"github.com/ua-proxy-go/internal/quota"
	"github.com/ua-proxy-go/internal/services/ai"
	"github.com/ua-proxy-go/internal/services/experts"
	"github.com/ua-proxy-go/internal/services/search"
	"github.com/ua-proxy-go/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting Universal Adapter Proxy...")
	log.WithFields(logrus.Fields{
		"thinking_model": cfg.Backend.ThinkingModel,
		"vision_model":   cfg.Backend.VisionModel,
		"backend":        cfg.Backend.BaseURL,
	}).Info("Backend configured")

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	catalog, err := experts.LoadCatalog(cfg.Experts.Directory, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load expert catalog")
	}

	store, err := quota.NewStore(&cfg.Quota, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize quota store")
	}
	guard := quota.NewGuard(store, cfg.Quota.DailyLimit, log)

	aiClient := ai.NewClient(&cfg.Backend, log)
	searchClient := search.NewGoogleClient(&cfg.Search, log)
	extractor := search.NewExtractor(&cfg.Cache, log)
	augmenter := search.NewAugmenter(aiClient, searchClient, guard, extractor, cfg.Search.MaxResults, log)
	selector := experts.NewSelector(aiClient, catalog, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	metrics := middleware.NewMetrics()

	handler := handlers.NewHandler(
		log,
		adapters.NewRegistry(),
		aiClient,
		augmenter,
		selector,
		catalog,
		guard,
		rateLimiter,
		localizer,
		metrics,
		cfg.Backend.ForwardTimeout,
	)

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	router := mux.NewRouter()
	router.HandleFunc("/admin/quota", handler.QuotaStatus).Methods(http.MethodGet)
	router.HandleFunc("/admin/experts", handler.ExpertCatalog).Methods(http.MethodGet)
	router.PathPrefix("/").HandlerFunc(handler.Proxy).Methods(http.MethodPost, http.MethodOptions)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: middleware.RequestID(middleware.CORS(router)),
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("Proxy listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}

	log.Info("Proxy stopped")
}
