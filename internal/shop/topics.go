package shop

const (
	TopicOrderReserved      = "shop.order.reserved"
	TopicOrderPaid          = "shop.order.paid"
	TopicReservationExpired = "shop.reservation.expired"
)

// Partition key = order_id, so events for one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
