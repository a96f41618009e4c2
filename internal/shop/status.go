package shop

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusExpired Status = "expired"
)

var validNext = map[Status]map[Status]bool{
	StatusPending: {StatusPaid: true, StatusExpired: true},
	StatusPaid:    {},
	StatusExpired: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
