package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/mitienda-app/whatsapp-gateway/database"
	"github.com/mitienda-app/whatsapp-gateway/internal/bridge"
	"github.com/mitienda-app/whatsapp-gateway/internal/config"
	"github.com/mitienda-app/whatsapp-gateway/internal/jobs"
	"github.com/mitienda-app/whatsapp-gateway/internal/models"
	"github.com/mitienda-app/whatsapp-gateway/internal/routes"
	"github.com/mitienda-app/whatsapp-gateway/internal/services"
	"github.com/mitienda-app/whatsapp-gateway/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - using environment variables")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Configuration error: ", err)
	}

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Session{},
			&models.Customer{},
			&models.Conversation{},
			&models.Message{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
	}

	// Per-tenant bridge clients: each call builds a stateless client from
	// the tenant's overrides, falling back to the process defaults. No
	// process-wide credential cache.
	bridgeFactory := func(session *models.Session) services.BridgeClient {
		baseURL := cfg.BridgeBaseURL
		apiKey := cfg.BridgeAPIKey
		if session != nil && session.BridgeURL != "" {
			baseURL = session.BridgeURL
		}
		if session != nil && session.BridgeAPIKey != "" {
			apiKey = session.BridgeAPIKey
		}
		return bridge.NewClient(bridge.Config{BaseURL: baseURL, APIKey: apiKey})
	}

	// Responder: external AI service, optional
	var responder services.Responder
	if cfg.ResponderURL != "" {
		responder = services.NewHTTPResponder(cfg.ResponderURL, cfg.ResponderAPIKey)
		log.Println("✅ AI responder configured")
	} else {
		responder = services.NoopResponder{}
		log.Println("⚠️  No RESPONDER_URL set - automated replies disabled")
	}

	dispatcher := services.NewDispatcher(store, bridgeFactory)
	sessionManager := services.NewSessionManager(store, bridgeFactory)
	pipeline := services.NewPipeline(store, responder, dispatcher)

	// Background session reconciliation
	syncJob := jobs.NewSessionSyncJob(store, sessionManager, cfg.SessionSyncInterval)
	syncJob.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "MiTienda WhatsApp Gateway v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Organization-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Setup routes
	routes.SetupRoutes(app, pipeline, sessionManager, dispatcher)

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		syncJob.Stop()
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 WhatsApp Gateway starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", storageType())
	log.Printf("🌉 Bridge: %s", cfg.BridgeBaseURL)
	log.Println("========================================")

	log.Fatal(app.Listen(":" + cfg.Port))
}

func storageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}
