package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/renensondx509/unique-sneaker/internal/checkout"
	"github.com/renensondx509/unique-sneaker/internal/config"
	kafkax "github.com/renensondx509/unique-sneaker/internal/kafka"
	"github.com/renensondx509/unique-sneaker/internal/postgres"
	"github.com/renensondx509/unique-sneaker/internal/shop"
)

// The sweeper reclaims supply held by pending orders whose reservation window
// has elapsed (abandoned checkouts).
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicReservationExpired, 256)
	pExpired.Start(ctx)

	svc := &checkout.Service{
		Store:         &shop.Repo{DB: db},
		ExpiredEvents: pExpired,
		ServiceName:   cfg.ServiceName + "-sweeper",
	}

	log.Printf("sweeper started: interval=%s ttl=%s", cfg.SweepInterval, cfg.ReservationTTL)
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			sctx, scancel := context.WithTimeout(ctx, 10*time.Second)
			if _, err := svc.ReclaimExpired(sctx); err != nil {
				log.Printf("sweep: %v", err)
			}
			scancel()
		case <-sig:
			log.Println("shutting down sweeper...")
			pExpired.Close()
			pExpired.WaitClosed()
			return
		}
	}
}
