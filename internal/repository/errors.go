package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrInsufficientInventory is returned when a conditional seat decrement
	// matches no row: not enough seats, or the flight is no longer bookable.
	ErrInsufficientInventory = errors.New("insufficient seat inventory")

	ErrDuplicateReference = errors.New("booking reference already exists")
)
