package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/taskgrid-dev/taskgrid/db"
	"github.com/taskgrid-dev/taskgrid/internal/auth"
	"github.com/taskgrid-dev/taskgrid/internal/config"
	"github.com/taskgrid-dev/taskgrid/internal/handlers"
	"github.com/taskgrid-dev/taskgrid/internal/router"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded, using process environment")
	}

	cfg := config.Load()

	if err := auth.InitJWT(cfg.JWTSecret, cfg.JWTExpiration); err != nil {
		log.Fatalf("Failed to initialize JWT: %v", err)
	}

	handlers.SetCookieDomain(cfg.Domain)

	if err := db.ConnectDatabase(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	r := router.NewRouter()

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Listening on :%s", cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}

	if err := db.CloseDatabase(); err != nil {
		log.Printf("Failed to close database: %v", err)
	}
}
