package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"loja/internal/models"
	"loja/internal/repositories"
	"loja/pkg/mercadopago"
	"loja/pkg/rabbitmq"
)

// ErrInvalidSignature marks a webhook whose x-signature check failed. Such
// notifications are rejected but still acknowledged so the gateway does not
// hammer the endpoint with redeliveries.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// WebhookService reconciles asynchronous payment notifications against the
// order store.
type WebhookService struct {
	orderRepo repositories.OrderRepository
	gateway   PaymentGateway
	publisher EventPublisher
	secret    string // HMAC secret for x-signature; empty disables verification
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(orderRepo repositories.OrderRepository, gateway PaymentGateway, publisher EventPublisher, secret string) *WebhookService {
	return &WebhookService{
		orderRepo: orderRepo,
		gateway:   gateway,
		publisher: publisher,
		secret:    secret,
	}
}

// VerifySignature checks the Mercado Pago x-signature header against the
// configured secret. The signed manifest is
// "id:<dataID>;request-id:<requestID>;ts:<ts>;" and the header carries the
// timestamp and the hex HMAC-SHA256 as "ts=<ts>,v1=<hash>". With no secret
// configured the check is skipped.
func (s *WebhookService) VerifySignature(signatureHeader, requestID, dataID string) error {
	if s.secret == "" {
		return nil
	}
	if signatureHeader == "" {
		return ErrInvalidSignature
	}

	var ts, v1 string
	for _, part := range strings.Split(signatureHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return ErrInvalidSignature
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(v1), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// ProcessNotification fetches the authoritative payment resource for the
// given payment id and updates the matching order's payment id and status.
// A notification that matches no order is logged and tolerated; only gateway
// and store failures propagate, inviting a redelivery.
func (s *WebhookService) ProcessNotification(ctx context.Context, paymentID string) error {
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		// A completed fetch with a non-2xx answer is acknowledged so the
		// gateway does not redeliver a notification we can never resolve;
		// only transport or parse failures invite a redelivery.
		var apiErr *mercadopago.APIError
		if errors.As(err, &apiErr) {
			log.Printf("Gateway rejected payment lookup %s (status %d): %s", paymentID, apiErr.StatusCode, apiErr.Message)
			s.publishUnmatched(paymentID, "")
			return nil
		}
		return fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}

	fetchedPaymentID := strconv.FormatInt(payment.ID, 10)

	if payment.PreferenceID == "" {
		log.Printf("Payment %s carries no preference id, skipping reconciliation", fetchedPaymentID)
		s.publishUnmatched(fetchedPaymentID, payment.Status)
		return nil
	}

	order, err := s.orderRepo.UpdatePaymentByPreferenceID(payment.PreferenceID, fetchedPaymentID, payment.Status)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			// Deliberate: acknowledge so the gateway stops redelivering, but
			// keep unmatched notifications visible.
			log.Printf("Unmatched webhook: no order for preference %s (payment %s, status %s)", payment.PreferenceID, fetchedPaymentID, payment.Status)
			s.publishUnmatched(fetchedPaymentID, payment.Status)
			return nil
		}
		return fmt.Errorf("failed to update order for preference %s: %w", payment.PreferenceID, err)
	}

	log.Printf("Reconciled payment %s for order %s (reference %s): status %s", fetchedPaymentID, order.ID, order.ExternalReference, order.Status)

	s.publishEventSafe(rabbitmq.PaymentEvent{
		Type:              rabbitmq.EventPaymentUpdated,
		OrderID:           order.ID,
		ExternalReference: order.ExternalReference,
		PreferenceID:      order.PreferenceID,
		PaymentID:         fetchedPaymentID,
		Status:            payment.Status,
	})

	return nil
}

func (s *WebhookService) publishUnmatched(paymentID, status string) {
	s.publishEventSafe(rabbitmq.PaymentEvent{
		Type:      rabbitmq.EventWebhookUnmatched,
		PaymentID: paymentID,
		Status:    status,
	})
}

func (s *WebhookService) publishEventSafe(event rabbitmq.PaymentEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPaymentEvent(event); err != nil {
		log.Printf("Warning: Failed to publish %s event for payment %s: %v", event.Type, event.PaymentID, err)
	}
}
