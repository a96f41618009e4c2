package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renensondx509/unique-sneaker/internal/checkout"
	"github.com/renensondx509/unique-sneaker/internal/geo"
	"github.com/renensondx509/unique-sneaker/internal/payments"
	"github.com/renensondx509/unique-sneaker/internal/shop"
)

type mockStore struct {
	mu       sync.Mutex
	product  shop.Product
	orders   map[string]*shop.Order
	attached map[string]string
	paid     int // successful MarkPaid transitions
}

func newMockStore(supply int) *mockStore {
	return &mockStore{
		product: shop.Product{
			ID:          "prod-1",
			Name:        "Unique - Limited Edition",
			PriceCents:  100000,
			TotalSupply: supply,
		},
		orders:   map[string]*shop.Order{},
		attached: map[string]string{},
	}
}

func (m *mockStore) GetProduct(ctx context.Context) (shop.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.product, nil
}

func (m *mockStore) Reserve(ctx context.Context, name, city, orderCode string, ttl time.Duration) (shop.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.product.SoldCount >= m.product.TotalSupply {
		return shop.Order{}, 0, shop.ErrSoldOut
	}
	until := time.Now().UTC().Add(ttl)
	o := shop.Order{
		ID:            fmt.Sprintf("order-%d", len(m.orders)+1),
		OrderCode:     orderCode,
		Name:          name,
		City:          city,
		Status:        shop.StatusPending,
		ReservedUntil: &until,
		CreatedAt:     time.Now().UTC(),
	}
	m.orders[o.ID] = &o
	m.product.SoldCount++
	return o, m.product.Available(), nil
}

func (m *mockStore) AttachSession(ctx context.Context, orderID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attached[orderID] = sessionID
	return nil
}

func (m *mockStore) FindOrder(ctx context.Context, orderID string) (shop.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return shop.Order{}, shop.ErrNotFound
	}
	return *o, nil
}

func (m *mockStore) MarkPaid(ctx context.Context, orderID string, lat, lon *float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != shop.StatusPending {
		return false, nil
	}
	o.Status = shop.StatusPaid
	o.CityLat, o.CityLon = lat, lon
	o.ReservedUntil = nil
	m.paid++
	return true, nil
}

func (m *mockStore) ListOwners(ctx context.Context) ([]shop.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shop.Owner
	for _, o := range m.orders {
		if o.Status == shop.StatusPaid {
			out = append(out, shop.Owner{ID: o.ID, Name: o.Name, City: o.City, CityLat: o.CityLat, CityLon: o.CityLon, CreatedAt: o.CreatedAt})
		}
	}
	return out, nil
}

func (m *mockStore) ReclaimExpired(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, o := range m.orders {
		if o.Status == shop.StatusPending && o.ReservedUntil != nil && o.ReservedUntil.Before(now) {
			o.Status = shop.StatusExpired
			ids = append(ids, o.ID)
		}
	}
	if m.product.SoldCount >= len(ids) {
		m.product.SoldCount -= len(ids)
	} else {
		m.product.SoldCount = 0
	}
	return ids, nil
}

func (m *mockStore) order(t *testing.T, id string) shop.Order {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	require.True(t, ok, "order %s not in store", id)
	return *o
}

type mockPayments struct {
	mu       sync.Mutex
	sessions int
	fail     bool
}

func (m *mockPayments) CreateSession(ctx context.Context, args payments.CheckoutArgs) (payments.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return payments.Session{}, errors.New("stripe down")
	}
	m.sessions++
	return payments.Session{
		ID:  fmt.Sprintf("cs_test_%d", m.sessions),
		URL: fmt.Sprintf("https://checkout.stripe.test/pay/cs_test_%d", m.sessions),
	}, nil
}

func (m *mockPayments) ParseNotification(payload []byte, sig string) (payments.Notification, error) {
	return payments.Notification{}, nil
}

type mockGeocoder struct {
	mu    sync.Mutex
	pt    *geo.Point
	err   error
	calls int
}

func (m *mockGeocoder) Locate(ctx context.Context, city string) (*geo.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.pt, m.err
}

func (m *mockGeocoder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockPublisher struct {
	mu     sync.Mutex
	values [][]byte
}

func (m *mockPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, value)
}

func (m *mockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

func setup(supply int) (*checkout.Service, *mockStore, *mockPayments, *mockGeocoder, *mockPublisher) {
	store := newMockStore(supply)
	pay := &mockPayments{}
	gc := &mockGeocoder{pt: &geo.Point{Lat: 51.5, Lon: -0.12}}
	pub := &mockPublisher{}
	svc := &checkout.Service{
		Store:          store,
		Payments:       pay,
		Geocoder:       gc,
		ReservedEvents: pub,
		PaidEvents:     pub,
		ExpiredEvents:  pub,
		ServiceName:    "sneaker-test",
		ReservationTTL: 30 * time.Minute,
	}
	return svc, store, pay, gc, pub
}

func completed(eventID, orderID string) payments.Notification {
	return payments.Notification{
		EventID:   eventID,
		Type:      "checkout.session.completed",
		SessionID: "cs_test_1",
		OrderID:   orderID,
	}
}

func TestReserveRejectsMissingFields(t *testing.T) {
	svc, store, pay, _, _ := setup(7)

	for _, tc := range []struct{ name, city string }{
		{"", "London"},
		{"Ada", ""},
		{"   ", "London"},
		{"Ada", "\t\n"},
		{"", ""},
	} {
		_, err := svc.Reserve(context.Background(), tc.name, tc.city)
		require.ErrorIs(t, err, shop.ErrValidation, "name=%q city=%q", tc.name, tc.city)
	}

	assert.Equal(t, 0, store.product.SoldCount)
	assert.Empty(t, store.orders)
	assert.Equal(t, 0, pay.sessions)
}

func TestReserveCreatesPendingOrder(t *testing.T) {
	svc, store, _, _, pub := setup(7)

	url, err := svc.Reserve(context.Background(), "Ada", "London")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://checkout.stripe.test/"))

	require.Len(t, store.orders, 1)
	o := store.order(t, "order-1")
	assert.Equal(t, shop.StatusPending, o.Status)
	assert.Equal(t, "Ada", o.Name)
	assert.Equal(t, "London", o.City)
	assert.True(t, strings.HasPrefix(o.OrderCode, "UQ-"))
	assert.Equal(t, 1, store.product.SoldCount)
	assert.Equal(t, "cs_test_1", store.attached["order-1"])
	assert.Equal(t, 1, pub.Count())
}

func TestReserveUntilSoldOut(t *testing.T) {
	const supply = 7
	svc, store, _, _, _ := setup(supply)

	for i := 0; i < supply; i++ {
		url, err := svc.Reserve(context.Background(), "Ada", "London")
		require.NoError(t, err, "reservation %d", i+1)
		require.NotEmpty(t, url)
		assert.Equal(t, supply-i-1, store.product.Available())
	}

	_, err := svc.Reserve(context.Background(), "Grace", "Paris")
	require.ErrorIs(t, err, shop.ErrSoldOut)
	assert.Equal(t, supply, store.product.SoldCount)
	assert.Len(t, store.orders, supply)
}

func TestReservePaymentFailureKeepsReservation(t *testing.T) {
	svc, store, pay, _, _ := setup(7)
	pay.fail = true

	_, err := svc.Reserve(context.Background(), "Ada", "London")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shop.ErrValidation)
	assert.NotErrorIs(t, err, shop.ErrSoldOut)

	// The unit stays consumed; the expiry sweep gives it back later.
	assert.Equal(t, 1, store.product.SoldCount)
	o := store.order(t, "order-1")
	require.NotNil(t, o.ReservedUntil)
}

func TestConfirmMarksPaidWithCoordinates(t *testing.T) {
	svc, store, _, gc, _ := setup(7)
	_, err := svc.Reserve(context.Background(), "Ada", "London")
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmSession(context.Background(), completed("evt_1", "order-1")))
	svc.Wait()

	o := store.order(t, "order-1")
	assert.Equal(t, shop.StatusPaid, o.Status)
	require.NotNil(t, o.CityLat)
	require.NotNil(t, o.CityLon)
	assert.InDelta(t, 51.5, *o.CityLat, 0.0001)
	assert.InDelta(t, -0.12, *o.CityLon, 0.0001)
	assert.Equal(t, 1, gc.Calls())
}

func TestConfirmUnknownOrderIsNoop(t *testing.T) {
	svc, store, _, gc, _ := setup(7)

	require.NoError(t, svc.ConfirmSession(context.Background(), completed("evt_1", "order-404")))
	svc.Wait()

	assert.Empty(t, store.orders)
	assert.Equal(t, 0, gc.Calls())
}

func TestConfirmMissingOrderIDIsNoop(t *testing.T) {
	svc, store, _, gc, _ := setup(7)

	require.NoError(t, svc.ConfirmSession(context.Background(), completed("evt_1", "")))
	svc.Wait()

	assert.Empty(t, store.orders)
	assert.Equal(t, 0, gc.Calls())
}

func TestConfirmIgnoresOtherEventTypes(t *testing.T) {
	svc, store, _, gc, _ := setup(7)
	_, err := svc.Reserve(context.Background(), "Ada", "London")
	require.NoError(t, err)

	n := completed("evt_1", "order-1")
	n.Type = "payment_intent.created"
	require.NoError(t, svc.ConfirmSession(context.Background(), n))
	svc.Wait()

	assert.Equal(t, shop.StatusPending, store.order(t, "order-1").Status)
	assert.Equal(t, 0, gc.Calls())
}

func TestDuplicateConfirmationIsIgnored(t *testing.T) {
	svc, store, _, gc, _ := setup(7)
	_, err := svc.Reserve(context.Background(), "Ada", "London")
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmSession(context.Background(), completed("evt_1", "order-1")))
	svc.Wait()

	// Same session delivered again under a new event id: must not re-geocode
	// or double-count.
	require.NoError(t, svc.ConfirmSession(context.Background(), completed("evt_2", "order-1")))
	svc.Wait()

	store.mu.Lock()
	paid := store.paid
	store.mu.Unlock()
	assert.Equal(t, 1, paid)
	assert.Equal(t, 1, gc.Calls())
	assert.Equal(t, shop.StatusPaid, store.order(t, "order-1").Status)
}

func TestConfirmGeocodeFailureStillPays(t *testing.T) {
	svc, store, _, gc, _ := setup(7)
	gc.pt, gc.err = nil, errors.New("nominatim unreachable")
	_, err := svc.Reserve(context.Background(), "Ada", "Atlantis")
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmSession(context.Background(), completed("evt_1", "order-1")))
	svc.Wait()

	o := store.order(t, "order-1")
	assert.Equal(t, shop.StatusPaid, o.Status)
	assert.Nil(t, o.CityLat)
	assert.Nil(t, o.CityLon)
}

func TestOwnersExcludePending(t *testing.T) {
	svc, _, _, _, _ := setup(7)
	_, err := svc.Reserve(context.Background(), "Ada", "London")
	require.NoError(t, err)
	_, err = svc.Reserve(context.Background(), "Grace", "Paris")
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmSession(context.Background(), completed("evt_1", "order-1")))
	svc.Wait()

	owners, err := svc.Owners(context.Background())
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "Ada", owners[0].Name)
}

func TestReclaimExpiredRestoresSupply(t *testing.T) {
	svc, store, _, _, pub := setup(7)
	svc.ReservationTTL = -time.Minute // reservations are born expired

	_, err := svc.Reserve(context.Background(), "Ada", "London")
	require.NoError(t, err)
	_, err = svc.Reserve(context.Background(), "Grace", "Paris")
	require.NoError(t, err)
	require.Equal(t, 2, store.product.SoldCount)
	before := pub.Count()

	n, err := svc.ReclaimExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, store.product.SoldCount)
	assert.Equal(t, shop.StatusExpired, store.order(t, "order-1").Status)
	assert.Equal(t, shop.StatusExpired, store.order(t, "order-2").Status)
	assert.Equal(t, before+1, pub.Count())

	// Nothing left to reclaim.
	n, err = svc.ReclaimExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReclaimNeverTouchesPaidOrders(t *testing.T) {
	svc, store, _, _, _ := setup(7)
	svc.ReservationTTL = -time.Minute

	_, err := svc.Reserve(context.Background(), "Ada", "London")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmSession(context.Background(), completed("evt_1", "order-1")))
	svc.Wait()

	n, err := svc.ReclaimExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, shop.StatusPaid, store.order(t, "order-1").Status)
}
