package main

import (
	"log"
	"os"

	"carelink-backend/internal/database"

	"github.com/joho/godotenv"
)

// Standalone migration runner. The server applies migrations on boot as
// well; this exists for running schema changes against a database without
// starting the API.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed")

	if os.Getenv("SEED") == "true" {
		if err := database.SeedUsers(db); err != nil {
			log.Fatalf("User seeding failed: %v", err)
		}
		if err := database.SeedClients(db); err != nil {
			log.Fatalf("Client seeding failed: %v", err)
		}
		log.Println("Seed data in place")
	}
}
