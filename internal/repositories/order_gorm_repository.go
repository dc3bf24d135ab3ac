package repositories

import (
	"errors"
	"fmt"

	"loja/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
// The gorm session must be opened with TranslateError so unique-index
// violations surface as gorm.ErrDuplicatedKey.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// GetAll retrieves all orders with their items.
func (r *GORMOrderRepository) GetAll() ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Preload("Items").Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByExternalReference retrieves the order holding the given external reference.
func (r *GORMOrderRepository) GetByExternalReference(externalReference string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items").First(&order, "external_reference = ?", externalReference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order by external reference %s: %w", externalReference, err)
	}
	return &order, nil
}

// Create persists a new order together with its items. The unique index on
// external_reference is the authority on duplicates; a violation is reported
// as models.ErrDuplicateOrder so the caller can fall back to a read.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrDuplicateOrder
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpdatePaymentByPreferenceID sets payment id and status on the order owning
// the given preference id and returns the updated order.
func (r *GORMOrderRepository) UpdatePaymentByPreferenceID(preferenceID, paymentID, status string) (*models.Order, error) {
	var order models.Order
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "preference_id = ?", preferenceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrOrderNotFound
			}
			return fmt.Errorf("failed to find order by preference id %s: %w", preferenceID, err)
		}
		updates := map[string]interface{}{
			"payment_id": paymentID,
			"status":     status,
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update payment status for preference %s: %w", preferenceID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.db.Preload("Items").First(&order, "id = ?", order.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload order %s: %w", order.ID, err)
	}
	return &order, nil
}
