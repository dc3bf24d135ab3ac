package handlers

import (
	"errors"
	"log"

	"loja/internal/models"
	"loja/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for preference creation, webhooks, and
// the authenticated order read surface.
type OrderHandler struct {
	prefService    *services.PreferenceService
	webhookService *services.WebhookService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(prefService *services.PreferenceService, webhookService *services.WebhookService) *OrderHandler {
	return &OrderHandler{
		prefService:    prefService,
		webhookService: webhookService,
	}
}

// RegisterRoutes registers the public order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/order")
	orderRoutes.Get("/", h.HandleLiveness)
	orderRoutes.Post("/create_preference", h.HandleCreatePreference)
	orderRoutes.Post("/webhook", h.HandleWebhook)
}

// RegisterProtectedRoutes registers the operator-only read routes. The caller
// is expected to wrap the router in the JWT middleware.
func (h *OrderHandler) RegisterProtectedRoutes(router fiber.Router) {
	orderRoutes := router.Group("/order")
	orderRoutes.Get("/list", h.HandleListOrders)
	orderRoutes.Get("/:reference", h.HandleGetOrder)
}

// HandleLiveness responds with a plain liveness message.
func (h *OrderHandler) HandleLiveness(c *fiber.Ctx) error {
	return c.SendString("Server is up and running")
}

// HandleCreatePreference validates the order request, creates (or reuses) the
// gateway preference and responds with its id.
func (h *OrderHandler) HandleCreatePreference(c *fiber.Ctx) error {
	var req models.CreatePreferenceRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"message": err.Error(),
		})
	}

	idempotencyKey := c.Get("X-Idempotency-Key")

	order, err := h.prefService.CreatePreference(c.UserContext(), req, idempotencyKey)
	if err != nil {
		log.Printf("Error creating payment preference: %v", err)
		if errors.Is(err, models.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Invalid order request",
				"message": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to create payment preference",
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"id": order.PreferenceID,
	})
}

// HandleWebhook receives an asynchronous payment notification. It responds
// with a bare status code: 200 whenever the gateway should not redeliver
// (processed, unmatched, or rejected signature), 500 otherwise.
func (h *OrderHandler) HandleWebhook(c *fiber.Ctx) error {
	paymentID := c.Query("id")
	if paymentID == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	signature := c.Get("x-signature")
	requestID := c.Get("x-request-id")
	if err := h.webhookService.VerifySignature(signature, requestID, paymentID); err != nil {
		// Rejected but acknowledged: a forged notification must not trigger
		// gateway-side redelivery.
		log.Printf("Rejected webhook for payment %s: %v", paymentID, err)
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.webhookService.ProcessNotification(c.UserContext(), paymentID); err != nil {
		log.Printf("Error processing webhook for payment %s: %v", paymentID, err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}

// HandleListOrders retrieves all orders for the operator dashboard.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.prefService.GetAllOrders()
	if err != nil {
		log.Printf("Error getting all orders: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Could not retrieve orders",
			"message": err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleGetOrder retrieves a single order by its external reference.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	reference := c.Params("reference")
	order, err := h.prefService.GetOrderByExternalReference(reference)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "Order not found",
				"message": err.Error(),
			})
		}
		log.Printf("Error getting order by reference %s: %v", reference, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Could not retrieve order",
			"message": err.Error(),
		})
	}
	return c.JSON(order)
}
