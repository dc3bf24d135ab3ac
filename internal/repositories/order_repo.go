package repositories

import (
	"loja/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByExternalReference(externalReference string) (*models.Order, error)
	// Create persists a new order. It returns models.ErrDuplicateOrder when
	// another order already holds the same external reference.
	Create(order *models.Order) error
	// UpdatePaymentByPreferenceID sets payment id and status on the order that
	// owns the given preference id, returning the updated order. It returns
	// models.ErrOrderNotFound when no order matches.
	UpdatePaymentByPreferenceID(preferenceID, paymentID, status string) (*models.Order, error)
	// Deletion is intentionally absent: orders are never removed by this system.
}
