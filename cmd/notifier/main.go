package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/config"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/email"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/infrastructure/kafka"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/infrastructure/store"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/notification"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/notify"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("[Notifier] KAFKA_BROKERS environment variable is required")
	}

	log.Println("[Notifier] Starting email notifier...")
	log.Printf("[Notifier] Kafka: %v topic=%s", cfg.KafkaBrokers, cfg.KafkaTopic)

	db, err := store.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[Notifier] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	st := store.NewPostgresStore(db)

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	if !emailSvc.Configured() {
		log.Println("[Notifier] SMTP not configured, deliveries will be logged only")
	}

	fanout := notify.NewFanout(cfg.NotifyTimeout, notify.NewEmailChannel(emailSvc))
	handler := notification.NewHandler(fanout, st, cfg.StoreName)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "email-notifier")
	defer consumer.Close()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("[Notifier] Shutting down...")
		cancel()
	}()

	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
		log.Fatalf("[Notifier] Consumer error: %v", err)
	}
}
