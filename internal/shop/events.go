package shop

import (
	"encoding/json"
	"time"
)

const (
	EventOrderReserved      = "OrderReserved"
	EventOrderPaid          = "OrderPaid"
	EventReservationExpired = "ReservationExpired"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "sneaker-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload types per event ----

type OrderReservedPayload struct {
	OrderID   string `json:"order_id"`
	OrderCode string `json:"order_code"`
	City      string `json:"city"`
	Remaining int    `json:"remaining"`
}

type OrderPaidPayload struct {
	OrderID   string   `json:"order_id"`
	OrderCode string   `json:"order_code"`
	City      string   `json:"city"`
	CityLat   *float64 `json:"city_lat,omitempty"`
	CityLon   *float64 `json:"city_lon,omitempty"`
}

type ReservationExpiredPayload struct {
	OrderIDs  []string `json:"order_ids"`
	Reclaimed int      `json:"reclaimed"`
}
