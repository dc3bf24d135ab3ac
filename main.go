package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"loja/internal/config"
	"loja/internal/handlers"
	"loja/internal/middleware"
	"loja/internal/models"
	"loja/internal/repositories"
	"loja/internal/services"
	"loja/pkg/mercadopago"
	"loja/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Initialize RabbitMQ Client ---
	mqConfig := rabbitmq.Config{URL: cfg.RabbitMQURL}
	mqClient, err := rabbitmq.NewClient(mqConfig)
	if err != nil {
		log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
	}
	defer mqClient.Close() // Ensure the connection is closed on exit

	// --- Initialize Database ---
	// TranslateError is required so the unique index on external_reference
	// surfaces duplicate inserts as gorm.ErrDuplicatedKey.
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Initialize Repositories ---
	orderRepo := repositories.NewGORMOrderRepository(db)

	// --- Initialize Gateway Client ---
	mpClient := mercadopago.NewClient(mercadopago.Config{
		AccessToken: cfg.MPAccessToken,
		BaseURL:     cfg.MPBaseURL,
	})

	// --- Initialize Services ---
	prefService := services.NewPreferenceService(orderRepo, mpClient, mqClient, cfg)
	webhookService := services.NewWebhookService(orderRepo, mpClient, mqClient, cfg.MPWebhookSecret)
	authService := services.NewAuthService(cfg.OperatorUsername, cfg.OperatorPasswordHash, cfg.JWTSecret)

	// --- Initialize Handlers ---
	orderHandler := handlers.NewOrderHandler(prefService, webhookService)
	authHandler := handlers.NewAuthHandler(authService)

	// --- Initialize Fiber App ---
	app := fiber.New()

	// --- Middleware ---
	app.Use(logger.New()) // Request logger
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST",
		AllowHeaders: "Content-Type,Authorization,X-Idempotency-Key",
	}))

	// --- API Routes ---
	// Public: liveness, preference creation, webhook, operator login
	orderHandler.RegisterRoutes(app)
	authHandler.RegisterRoutes(app)

	// --- Health Check Endpoint ---
	// Must stay above the auth guard: the guard is mounted on the root prefix
	// and intercepts every route registered after it.
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Protected: operator order listing
	protectedRoutes := app.Group("", middleware.AuthRequired(authService))
	orderHandler.RegisterProtectedRoutes(protectedRoutes)

	// --- Start RabbitMQ Consumer in a Goroutine ---
	// The consumer drains the payment event queue. Downstream concerns
	// (confirmation emails, fulfillment) would hang off this handler.
	go func() {
		log.Println("Starting RabbitMQ consumer for payment events...")
		messageHandler := func(msg amqp.Delivery) error {
			log.Printf("Received Payment Event (Tag: %d): %s", msg.DeliveryTag, string(msg.Body))
			return nil // Return nil to acknowledge
		}
		if consumerErr := mqClient.ConsumePaymentEvents(messageHandler); consumerErr != nil {
			log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
		}
	}()

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	// Close RabbitMQ connection is handled by defer in main
	log.Println("Server gracefully stopped")
}
