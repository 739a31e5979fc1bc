package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/amasijo/dulceria-backend/internal/cache"
	"github.com/amasijo/dulceria-backend/internal/modules/auth"
	"github.com/amasijo/dulceria-backend/internal/modules/catalog"
	"github.com/amasijo/dulceria-backend/internal/modules/order"
	"github.com/amasijo/dulceria-backend/internal/modules/square"
	"github.com/amasijo/dulceria-backend/internal/modules/sync"
	"github.com/amasijo/dulceria-backend/internal/modules/webhook"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, reading configuration from environment")
	}

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Successfully connected to the database!")

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	// ── Phase 1: Square client & shared infrastructure ──────
	squareClient := square.NewClient(square.Config{
		BaseURL:     os.Getenv("SQUARE_BASE_URL"),
		AccessToken: os.Getenv("SQUARE_ACCESS_TOKEN"),
		Limiter:     square.NewLimiter(square.DefaultInterval),
	})

	cacheStore := cache.New()

	// ── Phase 2: Catalog ────────────────────────────────────
	catalogRepo := catalog.NewPostgresRepository(db)
	catalogService := catalog.NewService(catalogRepo)
	catalog.NewHandler(catalogService).RegisterRoutes(router)

	// ── Phase 3: Sync engine ────────────────────────────────
	images := sync.NewImageResolver(squareClient, sync.ImageResolverConfig{})
	engine := sync.New(squareClient, catalogRepo, images, cacheStore, sync.Config{
		DefaultCategory: os.Getenv("SYNC_DEFAULT_CATEGORY"),
	})

	authService := auth.NewService(auth.Config{
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
	})
	auth.NewHandler(authService).RegisterRoutes(router)

	guard := auth.RequireAdmin(os.Getenv("JWT_SECRET"))
	sync.NewHandler(engine).RegisterRoutes(router, guard)

	// ── Phase 4: Orders & webhooks ──────────────────────────
	orderRepo := order.NewPostgresRepository(db)
	orderService := order.NewService(orderRepo)

	webhook.NewHandler(webhook.Config{
		SignatureKey:    os.Getenv("SQUARE_WEBHOOK_SIGNATURE_KEY"),
		NotificationURL: os.Getenv("SQUARE_WEBHOOK_NOTIFICATION_URL"),
	}, engine, orderService, squareClient, cacheStore).RegisterRoutes(router)

	// ── Start Server ─────────────────────────────────────────
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Printf("Dulceria API server starting on :%s\n", port)
	log.Fatal(server.ListenAndServe())
}
