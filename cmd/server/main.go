package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shopchat/shopchat-backend/internal/api"
	"github.com/shopchat/shopchat-backend/internal/automation"
	"github.com/shopchat/shopchat-backend/internal/config"
	"github.com/shopchat/shopchat-backend/internal/database"
	"github.com/shopchat/shopchat-backend/internal/logging"
	"github.com/shopchat/shopchat-backend/internal/repository"
	"github.com/shopchat/shopchat-backend/internal/repository/memory"
	"github.com/shopchat/shopchat-backend/internal/repository/postgres"
	"github.com/shopchat/shopchat-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logging.New(cfg.Log)

	// Connect to database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	store := postgres.NewStore(db.DB)

	var analytics repository.AnalyticsRepository
	switch cfg.Analytics.Store {
	case "postgres":
		analytics = postgres.NewAnalyticsRepository(db.DB)
	default:
		log.WithField("max_events", cfg.Analytics.MaxEvents).Warn("analytics events are kept in memory and lost on restart")
		analytics = memory.NewAnalyticsStore(cfg.Analytics.MaxEvents)
	}

	client := automation.NewClient(cfg.Webhook.Timeout, log)
	svc := services.NewServices(cfg, store, analytics, client, log)

	app := api.NewApp(svc, api.AppOptions{AccessLog: true})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":            cfg.Addr(),
		"db_driver":       cfg.Database.Driver,
		"analytics_store": cfg.Analytics.Store,
	}).Info("ShopChat backend starting")
	if err := app.Listen(cfg.Addr()); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}
