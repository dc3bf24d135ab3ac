package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"loja/internal/config"
	"loja/internal/models"
	"loja/internal/repositories"
	"loja/pkg/mercadopago"
	"loja/pkg/rabbitmq"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// maxInstallments caps how many installments the gateway may offer at checkout.
const maxInstallments = 12

// PaymentGateway abstracts the Mercado Pago operations this service depends on.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, pref mercadopago.PreferenceRequest, idempotencyKey string) (*mercadopago.Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// EventPublisher abstracts the RabbitMQ client used for payment lifecycle events.
type EventPublisher interface {
	PublishPaymentEvent(event rabbitmq.PaymentEvent) error
}

// PreferenceService handles business logic for creating payment preferences.
type PreferenceService struct {
	orderRepo repositories.OrderRepository
	gateway   PaymentGateway
	publisher EventPublisher
	cfg       config.Config
	validate  *validator.Validate
}

// NewPreferenceService creates a new PreferenceService.
func NewPreferenceService(orderRepo repositories.OrderRepository, gateway PaymentGateway, publisher EventPublisher, cfg config.Config) *PreferenceService {
	return &PreferenceService{
		orderRepo: orderRepo,
		gateway:   gateway,
		publisher: publisher,
		cfg:       cfg,
		validate:  validator.New(),
	}
}

// CreatePreference creates a gateway preference for the request and persists
// the resulting order. Requests repeating an already-seen external reference
// return the stored order without touching the gateway again. The idempotency
// key, when supplied by the caller, is forwarded to the gateway so retried
// requests map to the same gateway-side preference.
func (s *PreferenceService) CreatePreference(ctx context.Context, req models.CreatePreferenceRequest, idempotencyKey string) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}

	// Fast path: the reference was already processed.
	existing, err := s.orderRepo.GetByExternalReference(req.ExternalReference)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrOrderNotFound) {
		return nil, fmt.Errorf("failed to look up order %s: %w", req.ExternalReference, err)
	}

	pref, err := s.gateway.CreatePreference(ctx, s.buildPreferenceRequest(req), idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment preference: %w", err)
	}

	newOrder := &models.Order{
		ID:                uuid.New().String(),
		ExternalReference: req.ExternalReference,
		Items:             buildOrderItems(req.Items),
		Payer:             req.Payer,
		PreferenceID:      pref.ID,
	}

	if err := s.orderRepo.Create(newOrder); err != nil {
		if errors.Is(err, models.ErrDuplicateOrder) {
			// A concurrent request won the insert. Discard our preference and
			// hand back the winner's, so both callers see one preference id.
			log.Printf("Lost creation race for reference %s, discarding preference %s", req.ExternalReference, pref.ID)
			winner, readErr := s.orderRepo.GetByExternalReference(req.ExternalReference)
			if readErr != nil {
				return nil, fmt.Errorf("failed to read winning order for %s: %w", req.ExternalReference, readErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	s.publishEvent(rabbitmq.PaymentEvent{
		Type:              rabbitmq.EventOrderCreated,
		OrderID:           newOrder.ID,
		ExternalReference: newOrder.ExternalReference,
		PreferenceID:      newOrder.PreferenceID,
	})

	return newOrder, nil
}

// GetAllOrders retrieves all orders.
func (s *PreferenceService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// GetOrderByExternalReference retrieves a single order by its external reference.
func (s *PreferenceService) GetOrderByExternalReference(externalReference string) (*models.Order, error) {
	return s.orderRepo.GetByExternalReference(externalReference)
}

// buildPreferenceRequest maps the incoming order request into the gateway's
// preference shape: fixed currency, fixed back URLs, auto_return on approval,
// and a notification URL pointing at this service's webhook endpoint.
func (s *PreferenceService) buildPreferenceRequest(req models.CreatePreferenceRequest) mercadopago.PreferenceRequest {
	items := make([]mercadopago.PreferenceItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, mercadopago.PreferenceItem{
			ID:          item.ID,
			Title:       item.Title,
			Description: item.Description,
			PictureURL:  item.PictureURL,
			CategoryID:  item.CategoryID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			CurrencyID:  models.CurrencyID,
		})
	}

	pref := mercadopago.PreferenceRequest{
		ExternalReference: req.ExternalReference,
		Items:             items,
		BackURLs: mercadopago.BackURLs{
			Success: s.cfg.BackURLSuccess,
			Failure: s.cfg.BackURLFailure,
			Pending: s.cfg.BackURLPending,
		},
		AutoReturn:      "approved",
		NotificationURL: s.cfg.NotificationURL(),
		PaymentMethods:  mercadopago.PaymentMethods{Installments: maxInstallments},
	}
	if req.Payer.Name != "" || req.Payer.Surname != "" {
		pref.Payer = &mercadopago.PreferencePayer{
			Name:    req.Payer.Name,
			Surname: req.Payer.Surname,
		}
	}
	return pref
}

// buildOrderItems copies the submitted items into the persisted shape.
func buildOrderItems(items []models.ItemRequest) []models.OrderItem {
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		orderItems = append(orderItems, models.OrderItem{
			ItemID:      item.ID,
			Title:       item.Title,
			Description: item.Description,
			PictureURL:  item.PictureURL,
			CategoryID:  item.CategoryID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			CurrencyID:  models.CurrencyID,
		})
	}
	return orderItems
}

// publishEvent publishes a payment lifecycle event, logging instead of failing
// the request when the broker is unavailable.
func (s *PreferenceService) publishEvent(event rabbitmq.PaymentEvent) {
	if s.publisher == nil {
		log.Println("RabbitMQ client is not initialized. Skipping message publication.")
		return
	}
	if err := s.publisher.PublishPaymentEvent(event); err != nil {
		log.Printf("Warning: Failed to publish %s event for reference %s: %v", event.Type, event.ExternalReference, err)
	}
}
