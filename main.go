package main

import (
	"context"
	"log"
	"os"

	"callalert-backend/config"
	"callalert-backend/models"
	"callalert-backend/routes"
	"callalert-backend/services"
	"callalert-backend/ws"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	db := config.ConnectDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
	); err != nil {
		log.Fatalf("Auto-migration failed: %v", err)
	}

	// The hub is built here and injected everywhere it is needed: it is
	// the result broadcaster, the eligibility source for the scheduler,
	// and the target index for the Twilio webhook.
	hub := ws.NewHub()

	creds := services.NewCredentialService(db)
	calendar := services.NewCalendarService(creds)
	dialer := services.NewCallService()

	reminders := services.NewReminderService(db, calendar, dialer, hub, hub)
	scheduler := reminders.StartScheduler(context.Background())
	defer scheduler.Stop()

	r := routes.SetupRouter(db, hub, creds, calendar)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}
	log.Printf("Server + WebSocket running on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
