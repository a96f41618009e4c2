package shop

import "time"

type Product struct {
	ID          string
	Name        string
	PriceCents  int
	TotalSupply int
	SoldCount   int
}

func (p Product) Available() int { return p.TotalSupply - p.SoldCount }

type Order struct {
	ID              string
	OrderCode       string
	Name            string
	City            string
	Status          Status // see status.go
	StripeSessionID *string
	CityLat         *float64
	CityLon         *float64
	ReservedUntil   *time.Time
	CreatedAt       time.Time
}

// Owner is the public projection of a paid order, enough to pin it on the map.
type Owner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	CityLat   *float64  `json:"city_lat"`
	CityLon   *float64  `json:"city_lon"`
	CreatedAt time.Time `json:"created_at"`
}
