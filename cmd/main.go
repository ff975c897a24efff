package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"

	"hoisting/internal/events"
	"hoisting/internal/logger"
	"hoisting/internal/models"
	"hoisting/internal/server"
	"hoisting/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := models.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.Env, cfg.LogLevel)
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := storage.NewStorage(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to init storage", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.KafkaBroker != "" {
		producer := events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer

		// Audit consumer in background
		go func() {
			consumer := kafka.NewReader(kafka.ReaderConfig{
				Brokers: []string{cfg.KafkaBroker},
				Topic:   cfg.KafkaTopic,
				GroupID: "hoisting-audit",
			})
			defer consumer.Close()

			err := events.Consume(ctx, consumer, func(e events.Event) error {
				slog.Info("event", "type", e.Type, "image_id", e.ImageID, "ip", e.IP, "at", e.At)
				return nil
			})
			if err != nil {
				slog.Error("event consumer stopped", "error", err)
			}
		}()
	} else {
		slog.Info("kafka_broker not set, events disabled")
	}

	srv, err := server.NewServer(cfg, db, publisher)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
