package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/presshost/presshost/internal/config"
	"github.com/presshost/presshost/internal/db"
	"github.com/presshost/presshost/internal/metrics"
	"github.com/presshost/presshost/internal/provision"
	"github.com/presshost/presshost/internal/queue"
	"github.com/presshost/presshost/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Database
	database, err := db.NewConnection(cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	repo := db.NewRepository(database)

	// Redis queue
	redisClient := queue.NewClient(cfg.Redis.URL)
	defer redisClient.Close()
	jobQueue := queue.NewRedisQueue(redisClient)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	provisioner := provision.New(repo, provision.Options{
		InstallDir:     cfg.Provision.InstallDir,
		NginxConfigDir: cfg.Provision.NginxConfigDir,
		PHPFPMSocket:   cfg.Provision.PHPFPMSocket,
		DownloadURL:    cfg.Provision.DownloadURL,
		WebUser:        cfg.Provision.WebUser,
	}, logger)

	pool := worker.NewPool(jobQueue, repo, provisioner, collector, logger, cfg.Worker.Count, cfg.Worker.PopTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	go pool.Start(ctx)

	logger.Info("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	logger.Info("Worker exited")
}
