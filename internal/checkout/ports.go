package checkout

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/renensondx509/unique-sneaker/internal/geo"
	"github.com/renensondx509/unique-sneaker/internal/payments"
	"github.com/renensondx509/unique-sneaker/internal/shop"
)

type Store interface {
	GetProduct(ctx context.Context) (shop.Product, error)
	Reserve(ctx context.Context, name, city, orderCode string, ttl time.Duration) (shop.Order, int, error)
	AttachSession(ctx context.Context, orderID, sessionID string) error
	FindOrder(ctx context.Context, orderID string) (shop.Order, error)
	MarkPaid(ctx context.Context, orderID string, lat, lon *float64) (bool, error)
	ListOwners(ctx context.Context) ([]shop.Owner, error)
	ReclaimExpired(ctx context.Context, now time.Time) ([]string, error)
}

type Payments interface {
	CreateSession(ctx context.Context, args payments.CheckoutArgs) (payments.Session, error)
	ParseNotification(payload []byte, sigHeader string) (payments.Notification, error)
}

type Geocoder interface {
	Locate(ctx context.Context, city string) (*geo.Point, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}
