package repositories

import (
	"sync"
	"time"

	"loja/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders map[string]models.Order // keyed by external reference
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// GetAll returns all orders.
func (r *MockOrderRepository) GetAll() ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orderList = append(orderList, order)
	}
	return orderList, nil
}

// GetByExternalReference returns the order holding the given external reference.
func (r *MockOrderRepository) GetByExternalReference(externalReference string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[externalReference]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return &order, nil
}

// Create adds a new order, rejecting duplicate external references the same
// way the unique index does in the GORM implementation.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ExternalReference]; exists {
		return models.ErrDuplicateOrder
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = time.Now()
	r.orders[order.ExternalReference] = *order
	return nil
}

// UpdatePaymentByPreferenceID sets payment id and status on the matching order.
func (r *MockOrderRepository) UpdatePaymentByPreferenceID(preferenceID, paymentID, status string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ref, order := range r.orders {
		if order.PreferenceID == preferenceID {
			order.PaymentID = paymentID
			order.Status = status
			order.UpdatedAt = time.Now()
			r.orders[ref] = order
			return &order, nil
		}
	}
	return nil, models.ErrOrderNotFound
}
