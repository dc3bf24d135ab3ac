package models

import "errors"

// Sentinel errors shared across the service and repository layers.
var (
	// ErrInvalidRequest marks a request rejected at the boundary before any
	// gateway call or store write.
	ErrInvalidRequest = errors.New("invalid order request")

	// ErrDuplicateOrder is returned by a repository Create when another order
	// already holds the same external reference.
	ErrDuplicateOrder = errors.New("order with this external reference already exists")

	// ErrOrderNotFound is returned when a lookup matches no order.
	ErrOrderNotFound = errors.New("order not found")
)
