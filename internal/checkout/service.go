package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/renensondx509/unique-sneaker/internal/kafka"
	"github.com/renensondx509/unique-sneaker/internal/payments"
	"github.com/renensondx509/unique-sneaker/internal/redisx"
	"github.com/renensondx509/unique-sneaker/internal/shop"
)

// Service owns the reservation workflow and the payment-confirmation path.
type Service struct {
	Store    Store
	Payments Payments
	Geocoder Geocoder
	Redis    *redis.Client // nil disables the webhook dedup fast path

	ReservedEvents Publisher
	PaidEvents     Publisher
	ExpiredEvents  Publisher

	ServiceName    string
	ReservationTTL time.Duration

	wg sync.WaitGroup
}

func (s *Service) Product(ctx context.Context) (shop.Product, error) {
	return s.Store.GetProduct(ctx)
}

func (s *Service) Owners(ctx context.Context) ([]shop.Owner, error) {
	return s.Store.ListOwners(ctx)
}

// Reserve validates the buyer, consumes one unit of supply and returns the
// Stripe redirect URL. The supply check and the sold_count bump happen in one
// store transaction; a reservation that never gets paid is reclaimed later by
// the expiry sweep.
func (s *Service) Reserve(ctx context.Context, name, city string) (string, error) {
	name = strings.TrimSpace(name)
	city = strings.TrimSpace(city)
	if name == "" || city == "" {
		return "", shop.ErrValidation
	}

	p, err := s.Store.GetProduct(ctx)
	if err != nil {
		return "", fmt.Errorf("load product: %w", err)
	}

	ord, remaining, err := s.Store.Reserve(ctx, name, city, NewOrderCode(), s.ReservationTTL)
	if err != nil {
		return "", err
	}

	sess, err := s.Payments.CreateSession(ctx, payments.CheckoutArgs{
		ProductName: p.Name,
		Description: fmt.Sprintf("Unique limited-edition sneaker (1 of %d)", p.TotalSupply),
		PriceCents:  p.PriceCents,
		OrderID:     ord.ID,
		OrderCode:   ord.OrderCode,
	})
	if err != nil {
		// The unit stays reserved until the sweep reclaims it.
		return "", err
	}
	if err := s.Store.AttachSession(ctx, ord.ID, sess.ID); err != nil {
		return "", fmt.Errorf("attach session: %w", err)
	}

	s.publish(s.ReservedEvents, shop.EventOrderReserved, ord.ID, shop.OrderReservedPayload{
		OrderID:   ord.ID,
		OrderCode: ord.OrderCode,
		City:      ord.City,
		Remaining: remaining,
	})
	return sess.URL, nil
}

// HandleWebhook decodes a provider delivery and hands it to ConfirmSession.
// A payload that fails verification is the only error a caller should turn
// into a non-2xx response.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	n, err := s.Payments.ParseNotification(payload, sigHeader)
	if err != nil {
		return err
	}
	return s.ConfirmSession(ctx, n)
}

// ConfirmSession reacts to a completed checkout session. Unknown orders and
// duplicate deliveries are no-ops; enrichment plus the paid transition run
// detached so the provider gets its ack immediately.
func (s *Service) ConfirmSession(ctx context.Context, n payments.Notification) error {
	if !n.Completed() {
		return nil
	}

	if s.Redis != nil && n.EventID != "" {
		dkey := fmt.Sprintf(redisx.KeyWebhookDedup, n.EventID)
		if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	if n.OrderID == "" {
		log.Printf("webhook: no order_id in session metadata (session=%s)", n.SessionID)
		return nil
	}
	ord, err := s.Store.FindOrder(ctx, n.OrderID)
	if errors.Is(err, shop.ErrNotFound) {
		log.Printf("webhook: order not found: %s", n.OrderID)
		return nil
	}
	if err != nil {
		return err
	}
	if ord.Status != shop.StatusPending {
		return nil // already finalized, keep it that way
	}

	s.wg.Add(1)
	go s.finalize(ord)
	return nil
}

func (s *Service) finalize(ord shop.Order) {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var lat, lon *float64
	if pt, err := s.Geocoder.Locate(ctx, ord.City); err != nil {
		log.Printf("geocode %q: %v", ord.City, err)
	} else if pt != nil {
		lat, lon = &pt.Lat, &pt.Lon
	}

	changed, err := s.Store.MarkPaid(ctx, ord.ID, lat, lon)
	if err != nil {
		log.Printf("mark paid %s: %v", ord.ID, err)
		return
	}
	if !changed {
		return
	}
	log.Printf("order marked paid: %s", ord.ID)

	s.publish(s.PaidEvents, shop.EventOrderPaid, ord.ID, shop.OrderPaidPayload{
		OrderID:   ord.ID,
		OrderCode: ord.OrderCode,
		City:      ord.City,
		CityLat:   lat,
		CityLon:   lon,
	})
}

// Wait blocks until detached confirmation work has drained. Called on
// shutdown and by tests.
func (s *Service) Wait() { s.wg.Wait() }

// ReclaimExpired releases supply held by stale pending orders.
func (s *Service) ReclaimExpired(ctx context.Context) (int, error) {
	ids, err := s.Store.ReclaimExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	log.Printf("reclaimed %d expired reservation(s)", len(ids))
	s.publish(s.ExpiredEvents, shop.EventReservationExpired, ids[0], shop.ReservationExpiredPayload{
		OrderIDs:  ids,
		Reclaimed: len(ids),
	})
	return len(ids), nil
}

func (s *Service) publish(p Publisher, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	ev := shop.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(shop.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
