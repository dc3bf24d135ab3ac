package services_test

import (
	"context"
	"fmt"
	"testing"

	"loja/internal/config"
	"loja/internal/models"
	"loja/internal/services"
	"loja/pkg/mercadopago"
	"loja/pkg/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock implementation of repositories.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) GetAll() ([]models.Order, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByExternalReference(externalReference string) (*models.Order, error) {
	args := m.Called(externalReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) Create(order *models.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdatePaymentByPreferenceID(preferenceID, paymentID, status string) (*models.Order, error) {
	args := m.Called(preferenceID, paymentID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

// MockPaymentGateway is a mock implementation of services.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreatePreference(ctx context.Context, pref mercadopago.PreferenceRequest, idempotencyKey string) (*mercadopago.Preference, error) {
	args := m.Called(ctx, pref, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mercadopago.Preference), args.Error(1)
}

func (m *MockPaymentGateway) GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mercadopago.Payment), args.Error(1)
}

// MockEventPublisher is a mock implementation of services.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishPaymentEvent(event rabbitmq.PaymentEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func testConfig() config.Config {
	return config.Config{
		PublicBaseURL:  "http://localhost:3001",
		BackURLSuccess: "https://store.example.com/ecommerce",
		BackURLFailure: "https://store.example.com/ecommerce",
		BackURLPending: "https://store.example.com/ecommerce",
	}
}

func validRequest() models.CreatePreferenceRequest {
	return models.CreatePreferenceRequest{
		ExternalReference: "ORD-1",
		Items: []models.ItemRequest{
			{ID: "item-1", Title: "Mechanical keyboard", Quantity: 2, UnitPrice: 10.0},
		},
		Payer: models.Payer{Name: "Ana", Surname: "Silva"},
	}
}

func TestPreferenceService_CreatePreference_EmptyItems(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockGateway := new(MockPaymentGateway)
	service := services.NewPreferenceService(mockRepo, mockGateway, nil, testConfig())

	req := validRequest()
	req.Items = nil

	order, err := service.CreatePreference(context.Background(), req, "")

	assert.Nil(t, order)
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	// A rejected request must not reach the gateway or the store.
	mockGateway.AssertNotCalled(t, "CreatePreference", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestPreferenceService_CreatePreference_InvalidNumericFields(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockGateway := new(MockPaymentGateway)
	service := services.NewPreferenceService(mockRepo, mockGateway, nil, testConfig())

	// Non-positive quantity
	req := validRequest()
	req.Items[0].Quantity = 0
	_, err := service.CreatePreference(context.Background(), req, "")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	// Non-positive unit price
	req = validRequest()
	req.Items[0].UnitPrice = -5
	_, err = service.CreatePreference(context.Background(), req, "")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	// Missing external reference
	req = validRequest()
	req.ExternalReference = ""
	_, err = service.CreatePreference(context.Background(), req, "")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	mockGateway.AssertNotCalled(t, "CreatePreference", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestPreferenceService_CreatePreference_Success(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockGateway := new(MockPaymentGateway)
	mockPublisher := new(MockEventPublisher)
	service := services.NewPreferenceService(mockRepo, mockGateway, mockPublisher, testConfig())

	mockRepo.On("GetByExternalReference", "ORD-1").Return(nil, models.ErrOrderNotFound).Once()
	mockGateway.On("CreatePreference", mock.Anything, mock.MatchedBy(func(pref mercadopago.PreferenceRequest) bool {
		return pref.ExternalReference == "ORD-1" &&
			len(pref.Items) == 1 &&
			pref.Items[0].Quantity == 2 &&
			pref.Items[0].UnitPrice == 10.0 &&
			pref.Items[0].CurrencyID == models.CurrencyID &&
			pref.AutoReturn == "approved" &&
			pref.NotificationURL == "http://localhost:3001/order/webhook" &&
			pref.PaymentMethods.Installments == 12
	}), "key-1").Return(&mercadopago.Preference{ID: "PREF-1"}, nil).Once()

	var persisted *models.Order
	mockRepo.On("Create", mock.AnythingOfType("*models.Order")).Run(func(args mock.Arguments) {
		persisted = args.Get(0).(*models.Order)
	}).Return(nil).Once()
	mockPublisher.On("PublishPaymentEvent", mock.MatchedBy(func(event rabbitmq.PaymentEvent) bool {
		return event.Type == rabbitmq.EventOrderCreated && event.ExternalReference == "ORD-1"
	})).Return(nil).Once()

	order, err := service.CreatePreference(context.Background(), validRequest(), "key-1")

	assert.NoError(t, err)
	assert.Equal(t, "PREF-1", order.PreferenceID)
	assert.Equal(t, "ORD-1", order.ExternalReference)

	// The persisted order mirrors the submitted items field-for-field.
	assert.NotNil(t, persisted)
	assert.Len(t, persisted.Items, 1)
	assert.Equal(t, "item-1", persisted.Items[0].ItemID)
	assert.Equal(t, "Mechanical keyboard", persisted.Items[0].Title)
	assert.Equal(t, 2, persisted.Items[0].Quantity)
	assert.Equal(t, 10.0, persisted.Items[0].UnitPrice)
	assert.Equal(t, models.CurrencyID, persisted.Items[0].CurrencyID)
	assert.Equal(t, "Ana", persisted.Payer.Name)

	mockRepo.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestPreferenceService_CreatePreference_RepeatedReferenceReturnsStoredPreference(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockGateway := new(MockPaymentGateway)
	service := services.NewPreferenceService(mockRepo, mockGateway, nil, testConfig())

	existing := &models.Order{
		ID:                "order-1",
		ExternalReference: "ORD-1",
		PreferenceID:      "PREF-1",
	}
	mockRepo.On("GetByExternalReference", "ORD-1").Return(existing, nil).Once()

	order, err := service.CreatePreference(context.Background(), validRequest(), "")

	assert.NoError(t, err)
	assert.Equal(t, "PREF-1", order.PreferenceID)
	// No second gateway call, no duplicate write.
	mockGateway.AssertNotCalled(t, "CreatePreference", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestPreferenceService_CreatePreference_LostInsertRaceFallsBackToRead(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockGateway := new(MockPaymentGateway)
	service := services.NewPreferenceService(mockRepo, mockGateway, nil, testConfig())

	winner := &models.Order{
		ID:                "order-1",
		ExternalReference: "ORD-1",
		PreferenceID:      "PREF-1",
	}

	// The lookup races: not found at first, but the insert collides with a
	// concurrent creator and the follow-up read returns the winner.
	mockRepo.On("GetByExternalReference", "ORD-1").Return(nil, models.ErrOrderNotFound).Once()
	mockGateway.On("CreatePreference", mock.Anything, mock.Anything, mock.Anything).
		Return(&mercadopago.Preference{ID: "PREF-2"}, nil).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.Order")).Return(models.ErrDuplicateOrder).Once()
	mockRepo.On("GetByExternalReference", "ORD-1").Return(winner, nil).Once()

	order, err := service.CreatePreference(context.Background(), validRequest(), "")

	assert.NoError(t, err)
	assert.Equal(t, "PREF-1", order.PreferenceID, "loser must return the winner's preference id")
	mockRepo.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
}

func TestPreferenceService_CreatePreference_GatewayFailure(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockGateway := new(MockPaymentGateway)
	service := services.NewPreferenceService(mockRepo, mockGateway, nil, testConfig())

	mockRepo.On("GetByExternalReference", "ORD-1").Return(nil, models.ErrOrderNotFound).Once()
	mockGateway.On("CreatePreference", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("gateway unavailable")).Once()

	order, err := service.CreatePreference(context.Background(), validRequest(), "")

	assert.Nil(t, order)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gateway unavailable")
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestPreferenceService_GetOrderByExternalReference(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := services.NewPreferenceService(mockRepo, new(MockPaymentGateway), nil, testConfig())

	expected := &models.Order{ID: "order-1", ExternalReference: "ORD-1"}
	mockRepo.On("GetByExternalReference", "ORD-1").Return(expected, nil).Once()

	order, err := service.GetOrderByExternalReference("ORD-1")
	assert.NoError(t, err)
	assert.Equal(t, expected, order)

	mockRepo.On("GetByExternalReference", "ORD-99").Return(nil, models.ErrOrderNotFound).Once()
	order, err = service.GetOrderByExternalReference("ORD-99")
	assert.Nil(t, order)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
	mockRepo.AssertExpectations(t)
}
