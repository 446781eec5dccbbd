package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/config"
	"github.com/zaqqye/simlab_backend/internal/database"
	"github.com/zaqqye/simlab_backend/internal/repository"
	"github.com/zaqqye/simlab_backend/internal/routes"
	"github.com/zaqqye/simlab_backend/internal/services"
	"github.com/zaqqye/simlab_backend/internal/ws"
)

func main() {
	// Load .env (non-fatal if missing in production)
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	if err := database.SeedAdmin(db, cfg); err != nil {
		log.Fatalf("admin seed failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.New(db)
	if err != nil {
		log.Fatalf("repository init failed: %v", err)
	}

	hubs := ws.NewHubs()
	go hubs.Run(ctx)

	svc := services.New(store, services.Options{
		OpTimeout: cfg.OpTimeout,
		Notifier:  hubs,
	})
	if err := services.StartReconciler(ctx, svc.Sync, cfg.ReconcileSchedule); err != nil {
		log.Fatalf("Failed to schedule reconciler: %v", err)
	}

	r := gin.Default()
	routes.Register(r, svc, hubs, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Println("server exited with error:", err)
		os.Exit(1)
	}
}
