package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"redis_browser/internal/session"
	"redis_browser/internal/store"
	"redis_browser/pkg"
	"redis_browser/src"
	"redis_browser/src/logger"
)

// Smoke run of the browse, edit and delete cycle against a live store.
// Reads REDIS_URL (or REDIS_HOST/REDIS_PORT) from the environment or .env.
func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	config, err := src.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.InitLogger(config.LogConfig); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	cfg, err := config.ConnectionConfig()
	if err != nil {
		log.Fatalf("Invalid connection config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ctl := session.New(store.NewDialer(logger.Component("store")), session.WithLogger(logger.Component("session")))
	if err := ctl.Connect(ctx, cfg); err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer ctl.Disconnect()
	fmt.Printf("✅ Connected to %s\n", cfg.Addr())

	key := "redis-browser:smoke:" + uuid.NewString()

	if err := ctl.AddKey(ctx, key, "first"); err != nil {
		log.Fatalf("Add failed: %v", err)
	}
	fmt.Printf("📝 Added %s\n", key)

	if _, err := ctl.BeginEdit(ctx, key); err != nil {
		log.Fatalf("Begin edit failed: %v", err)
	}
	if err := ctl.UpdateEdit("second"); err != nil {
		log.Fatalf("Update edit failed: %v", err)
	}
	if err := ctl.CommitEdit(ctx); err != nil {
		log.Fatalf("Commit failed: %v", err)
	}

	rec, err := ctl.SelectKey(ctx, key)
	if err != nil {
		log.Fatalf("Select failed: %v", err)
	}
	fmt.Printf("🔍 %s = %s\n", key, session.RenderRecord(rec))

	entries, err := ctl.Search(ctx, "redis-browser:smoke:")
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	fmt.Printf("🔎 %d smoke keys found\n", len(entries))

	outcome, err := ctl.DeleteKey(ctx, key)
	if err != nil {
		log.Fatalf("Delete failed: %v", err)
	}
	fmt.Printf("🗑️  %s\n", outcome)

	if _, err := ctl.SelectKey(ctx, key); !errors.Is(err, pkg.ErrNotFound) {
		log.Fatalf("Expected not found after delete, got %v", err)
	}
	fmt.Println("✅ Smoke run complete")
}
