package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/learn-earn/backend/internal/config"
	"github.com/learn-earn/backend/internal/database"
	"github.com/learn-earn/backend/internal/handlers"
	"github.com/learn-earn/backend/internal/middleware"
	"github.com/learn-earn/backend/internal/routes"
	"github.com/learn-earn/backend/internal/services"
	"github.com/learn-earn/backend/internal/store"
)

func main() {
	// Load env
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}
	// Load configuration
	cfg := config.Load()

	if cfg.AppPepper == "default_pepper_change_me" {
		log.Println("⚠️  WARNING: APP_PEPPER is the default value. Set a strong secret in production;")
		log.Println("   it keys payout signatures and mobile number hashes.")
	}

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Log connection attempt (without showing password)
	log.Printf("Connecting to MongoDB...")
	if cfg.MongoURI != "" {
		maskedURI := cfg.MongoURI
		if strings.Contains(maskedURI, "@") {
			parts := strings.Split(maskedURI, "@")
			if len(parts) > 0 && strings.Contains(parts[0], ":") {
				userPass := strings.Split(parts[0], ":")
				if len(userPass) >= 3 {
					maskedURI = strings.Replace(maskedURI, userPass[2], "***", 1)
				}
			}
		}
		log.Printf("MongoDB URI: %s", maskedURI)
	}

	// Connect to MongoDB
	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.Disconnect()

	st := store.NewMongo(database.DB)
	if err := st.EnsureIndexes(context.Background()); err != nil {
		log.Fatal("Failed to ensure MongoDB indexes:", err)
	}
	log.Println("✅ MongoDB indexes ensured")

	// Services
	settingsService := services.NewSettingsService(st, database.RedisClient)
	deviceService := services.NewDeviceService(st)
	earningService := services.NewEarningService(st, settingsService)
	progressService := services.NewProgressService(st, settingsService)
	payoutService := services.NewPayoutService(st, st, st, settingsService)
	versionService := services.NewVersionService(st)

	// Seed singleton documents on first boot
	if err := settingsService.Seed(context.Background(), cfg); err != nil {
		log.Fatal("Failed to seed settings:", err)
	}
	if err := versionService.Seed(context.Background()); err != nil {
		log.Fatal("Failed to seed version info:", err)
	}
	log.Println("✅ Settings and version documents seeded")

	handlers.Init(deviceService, progressService, earningService, payoutService, settingsService, versionService, st)

	// Setup router
	r := chi.NewRouter()

	// CORS must allow the device identity and signature headers
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Device-ID", "X-Signature", "X-Nonce"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Production: security headers → host check → sensitive route limits.
	// All environments: Redis-based per-IP rate limit with blocking.
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost) {
			r.Use(mw)
		}
		log.Println("✅ Production security enabled (security headers, host check, sensitive route limits)")
	}
	r.Use(middleware.RateLimitMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Setup routes
	routes.SetupRoutes(r, deviceService)

	// Log registered routes for debugging
	log.Println("📋 Registered routes:")
	log.Println("  GET  /health")
	log.Println("  GET  /api/version")
	log.Println("  POST /api/users/register")
	log.Println("  GET  /api/users/profile")
	log.Println("  POST /api/users/mobile-number")
	log.Println("  POST /api/users/lessons/{lessonId}/progress")
	log.Println("  POST /api/users/lessons/{lessonId}/complete")
	log.Println("  POST /api/ads/impression")
	log.Println("  POST /api/payouts/request")
	log.Println("  GET  /api/payouts/history")
	log.Println("  GET  /api/payouts/cooldown")
	log.Println("  POST /api/admin/login")
	log.Println("  PATCH /api/payouts/admin/{payoutId}/status")

	log.Printf("🚀 Learn & Earn backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
