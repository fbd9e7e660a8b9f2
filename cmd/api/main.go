package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/api"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/auth"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/config"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/gateway"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/infrastructure/kafka"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/infrastructure/redisx"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/infrastructure/store"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/inventory"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/notify"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/reconcile"
)

func main() {
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal("[API] JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[API] JWT_SECRET must be at least 32 characters long")
	}

	log.Println("[API] ========================================")
	log.Println("[API] Marketplace reconciliation engine")
	log.Println("[API] ========================================")

	db, err := store.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[API] Connected to PostgreSQL")

	st := store.NewPostgresStore(db)
	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("[API] Failed to ensure schema: %v", err)
	}

	var producer *kafka.Producer
	opts := reconcile.Options{StoreName: cfg.StoreName}
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		opts.Producer = producer
		log.Printf("[API] Kafka: %v topic=%s", cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	if cfg.RedisAddr != "" {
		opts.Dedupe = redisx.NewCache(redisx.New(cfg.RedisAddr))
		log.Printf("[API] Redis dedupe cache: %s", cfg.RedisAddr)
	}

	tokens := gateway.NewTokenSource(
		cfg.Instant.ClientID,
		cfg.Instant.ClientSecret,
		cfg.Instant.RefreshToken,
		"https://auth.instantpay.example/oauth/token",
		cfg.GatewayTimeout,
	)
	gateways := []gateway.Gateway{
		gateway.NewCardGateway(cfg.Card.APIKey, cfg.Card.WebhookSecret, "", cfg.GatewayTimeout),
		gateway.NewInstantGateway(tokens, cfg.Instant.WebhookSecret, "", cfg.BaseURL+"/webhooks/instant", cfg.GatewayTimeout),
		gateway.NewPixGateway(cfg.Pix.APIKey, cfg.Pix.WebhookSecret, "", cfg.GatewayTimeout),
	}

	allocator := inventory.NewAllocator(st)

	// Fast HTTP channels run in-process after the transaction commits.
	// Buyer email rides the Kafka stream (see cmd/notifier).
	fanout := notify.NewFanout(cfg.NotifyTimeout,
		notify.NewWebhookChannel(os.Getenv("VENDOR_WEBHOOK_URL"), os.Getenv("VENDOR_WEBHOOK_SECRET"), cfg.NotifyTimeout),
		notify.NewChatBotChannel(cfg.ChatBotURL, cfg.NotifyTimeout),
		notify.NewAlertChannel(cfg.OperatorAlertURL, cfg.NotifyTimeout),
	)

	rec := reconcile.New(st, allocator, fanout, gateways, opts)
	jwtService := auth.NewJWTService(cfg.JWTSecret, 12*time.Hour)

	handlers := api.NewHandlers(rec, allocator, st)
	router := api.NewRouter(api.RouterConfig{
		Handlers:   handlers,
		JWTService: jwtService,
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
