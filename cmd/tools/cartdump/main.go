package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/toko-cart/internal/app"
	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/storage"
)

func main() {
	var (
		sessionID = flag.String("session", "", "cart session id to inspect")
		clearCart = flag.Bool("clear", false, "empty the cart after printing it")
		migrate   = flag.Bool("migrate", false, "apply database migrations and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if *migrate {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			log.Fatal("DATABASE_URL is required")
		}
		if err := storage.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Println("migrations applied")
		return
	}

	if strings.TrimSpace(*sessionID) == "" {
		log.Fatal("-session is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := obs.NewLogger("console", "warn")
	deps, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		log.Fatalf("build dependencies: %v", err)
	}
	defer deps.Close()

	if err := dump(ctx, deps.Registry, *sessionID, *clearCart, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// dump writes the session's cart as indented JSON and optionally clears it.
// A cart that failed to load is still printed, empty, and reported as a warning.
func dump(ctx context.Context, reg *cart.Registry, sessionID string, clearCart bool, out io.Writer) error {
	store, release := reg.Acquire(ctx, sessionID)
	defer release()

	key := reg.Key(sessionID)
	if err := store.Err(); err != nil {
		log.Printf("load %s: %v", key, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cart.Render(store.Snapshot())); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if !clearCart {
		return nil
	}
	snap := store.Clear(ctx)
	if snap.PersistError != "" {
		return errors.New("clear " + key + ": " + snap.PersistError)
	}
	log.Printf("cleared %s", key)
	return nil
}
