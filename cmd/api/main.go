package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/renensondx509/unique-sneaker/internal/checkout"
	"github.com/renensondx509/unique-sneaker/internal/config"
	"github.com/renensondx509/unique-sneaker/internal/geo"
	"github.com/renensondx509/unique-sneaker/internal/httpx"
	kafkax "github.com/renensondx509/unique-sneaker/internal/kafka"
	"github.com/renensondx509/unique-sneaker/internal/payments"
	"github.com/renensondx509/unique-sneaker/internal/postgres"
	"github.com/renensondx509/unique-sneaker/internal/redisx"
	"github.com/renensondx509/unique-sneaker/internal/shop"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.StripeSecretKey == "" {
		log.Println("WARNING: STRIPE_SECRET_KEY is not set; checkout will fail until you provide keys")
	}
	if cfg.StripeWebhookSecret == "" {
		log.Println("WARNING: STRIPE_WEBHOOK_SECRET is not set; webhook payloads are NOT verified (dev only)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db, cfg.ProductName, cfg.ProductPriceCents, cfg.ProductSupply); err != nil {
		log.Fatalf("db schema: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers (one topic each)
	pReserved := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicOrderReserved, 1024)
	pReserved.Start(ctx)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicOrderPaid, 1024)
	pPaid.Start(ctx)

	// Service & handler
	svc := &checkout.Service{
		Store:          &shop.Repo{DB: db},
		Payments:       payments.New(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.AppBaseURL),
		Geocoder:       geo.NewClient(cfg.GeocoderUserAgent),
		Redis:          rdb,
		ReservedEvents: pReserved,
		PaidEvents:     pPaid,
		ServiceName:    cfg.ServiceName,
		ReservationTTL: cfg.ReservationTTL,
	}
	router := httpx.NewRouter()
	sh := &httpx.ShopHandler{Checkout: svc, Redis: rdb, Static: cfg.StaticDir}
	sh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s (base url %s)", cfg.HTTPAddr, cfg.AppBaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	svc.Wait() // drain in-flight confirmations
	pReserved.Close()
	pPaid.Close()
	pReserved.WaitClosed()
	pPaid.WaitClosed()
}
