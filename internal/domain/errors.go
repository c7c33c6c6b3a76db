package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPositionConflict  = errors.New("position already open on opposite side")
	ErrNoQuote           = errors.New("no usable quote")
)
