package main

import (
	"log"
	"net/http"
	"os"

	"carelink-backend/internal/database"
	"carelink-backend/internal/handlers"
	"carelink-backend/internal/middleware"
	"carelink-backend/internal/services"
	"carelink-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 CARELINK BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	log.Println("📂 Loading environment variables...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("❌ FATAL ERROR: DATABASE_URL environment variable is required")
	}

	// Connect to database
	log.Println("🔌 Connecting to database...")
	db, err := database.Connect(dbURL)
	if err != nil {
		log.Printf("❌ FATAL ERROR: Database connection failed: %v", err)
		log.Fatal(err)
	}
	defer db.Close()
	log.Println("✅ Database connection established")

	// Run migrations
	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Printf("❌ FATAL ERROR: Database migrations failed: %v", err)
		log.Fatal(err)
	}
	log.Println("✅ Database migrations completed")

	// Seed database
	log.Println("🌱 Seeding database with initial data...")
	if err := database.SeedUsers(db); err != nil {
		log.Printf("❌ FATAL ERROR: User seeding failed: %v", err)
		log.Fatal(err)
	}
	if err := database.SeedClients(db); err != nil {
		log.Printf("❌ FATAL ERROR: Client seeding failed: %v", err)
		log.Fatal(err)
	}
	log.Println("✅ Seed data in place")

	// Expire any authorizations whose window lapsed while the server was down
	ledger := services.NewAuthorizationLedger(db)
	if expired, err := ledger.ExpireLapsedAuthorizations(); err != nil {
		log.Printf("⚠️  Authorization expiry sweep failed: %v", err)
	} else if expired > 0 {
		log.Printf("✅ Expired %d lapsed authorization(s)", expired)
	}

	// Initialize Firebase Cloud Messaging
	// Supports both file path and base64-encoded credentials (for cloud deployments)
	var fcmService *services.FCMService
	fcmCredsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64")

	if fcmCredsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(fcmCredsBase64, db)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else {
		fcmCredentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE")
		if fcmCredentialsFile == "" {
			fcmCredentialsFile = "./firebase-service-account.json"
		}

		fcmService, err = services.NewFCMService(fcmCredentialsFile, db)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	// Compliance notifier fans events out to every available transport
	transports := []services.NotificationTransport{services.NewWebSocketTransport(wsHub)}
	if fcmService != nil {
		transports = append(transports, fcmService)
	}
	notifier := services.NewComplianceNotifier(transports...)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Carer endpoints (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			r.Get("/auth/status", handlers.GetAuthStatus(db))

			// Shift lifecycle
			r.Get("/carer/shift/current", handlers.GetCurrentShift(db))
			r.Post("/carer/shifts/{id}/check-in", handlers.CheckInShift(db, wsHub))
			r.Post("/carer/shifts/{id}/check-out", handlers.CheckOutShift(db, wsHub, notifier))

			// Shift history and attendance ledger
			r.Get("/carer/shift-history", handlers.GetShiftHistory(db))
			r.Get("/shifts/{id}/attendance", handlers.GetShiftAttendance(db))

			// FCM token registration
			r.Post("/carer/fcm-token", handlers.RegisterFCMToken(db))
		})

		// Admin endpoints (require authentication + admin role)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("admin"))

			// User management
			r.Post("/users", handlers.CreateUser(db))
			r.Get("/carers", handlers.GetCarers(db))

			// Client management
			r.Get("/clients", handlers.GetClients(db))
			r.Post("/clients", handlers.CreateClient(db))
			r.Patch("/clients/{id}", handlers.UpdateClient(db))

			// Authorization budgets
			r.Post("/authorizations", handlers.CreateAuthorization(db))
			r.Get("/clients/{id}/authorizations", handlers.GetClientAuthorizations(db))
			r.Post("/authorizations/expire", handlers.ExpireAuthorizations(db))
			r.Get("/billing/review-queue", handlers.GetBillingReviewQueue(db))

			// Scheduling
			r.Post("/shifts", handlers.ScheduleShift(db, wsHub))
			r.Put("/shifts/{id}/cancel", handlers.CancelShift(db, wsHub))
			r.Get("/shifts", handlers.GetCompanyShifts(db))
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		log.Printf("⚠️  PORT not set, using default: %s", port)
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", port)
	log.Println("═══════════════════════════════════════════════════════════════════")

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
