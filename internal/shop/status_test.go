package shop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusExpired, true},
		{StatusPaid, StatusPending, false},
		{StatusPaid, StatusExpired, false},
		{StatusExpired, StatusPaid, false},
		{StatusExpired, StatusPending, false},
		{StatusPaid, StatusPaid, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestProductAvailable(t *testing.T) {
	p := Product{TotalSupply: 7, SoldCount: 3}
	assert.Equal(t, 4, p.Available())

	p.SoldCount = 7
	assert.Equal(t, 0, p.Available())
}
