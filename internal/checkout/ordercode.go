package checkout

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewOrderCode builds a human-readable, practically unique code. Collisions
// are negligible but not impossible; the orders.order_code unique constraint
// is the real backstop.
func NewOrderCode() string {
	return fmt.Sprintf("UQ-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
