package shop

import "errors"

var (
	ErrValidation = errors.New("name and city required")
	ErrSoldOut    = errors.New("sold out")
	ErrNotFound   = errors.New("order not found")
)
