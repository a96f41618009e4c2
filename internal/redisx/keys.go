package redisx

import "time"

const (
	// Dedup for webhook deliveries: dedup:webhook:{event_id}
	KeyWebhookDedup = "dedup:webhook:%s"

	// Cached GET /api/product snapshot (JSON body).
	KeyProductSnapshot = "product:snapshot"
)

var (
	TTLDedup    = 48 * time.Hour
	TTLSnapshot = 30 * time.Second
)
