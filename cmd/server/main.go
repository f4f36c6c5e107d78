package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/guildhall/guildhall-backend/internal/chatstore"
	"github.com/guildhall/guildhall-backend/internal/config"
	"github.com/guildhall/guildhall-backend/internal/database"
	"github.com/guildhall/guildhall-backend/internal/handlers"
	"github.com/guildhall/guildhall-backend/internal/middleware"
	"github.com/guildhall/guildhall-backend/internal/routes"
	"github.com/guildhall/guildhall-backend/internal/services"
	"github.com/guildhall/guildhall-backend/internal/store"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	// Connect to PostgreSQL (identity)
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis (live chat state, sessions)
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB (history archive)
	log.Printf("Connecting to MongoDB...")
	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.Disconnect()

	if err := services.EnsureArchiveIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB archive indexes: %v", err)
	} else {
		log.Println("✅ MongoDB archive indexes ensured")
	}

	// Pick the live-state backend. Redis is the default; memory is for
	// single-instance local development only.
	var st store.Store
	if cfg.StoreBackend == "memory" {
		if cfg.IsProduction() {
			log.Fatal("STORE_BACKEND=memory is not allowed in production")
		}
		st = store.NewMemoryStore()
		log.Println("⚠️  Using in-memory store; state is lost on restart")
	} else {
		st = store.NewRedisStore(database.RedisClient)
	}

	// Media backend
	var media services.MediaService
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("File uploads will not be available")
		} else {
			media = cld
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. File uploads will not be available")
	}

	// Wire the service layer
	chat := chatstore.New(st)
	xp := services.NewXPLedger(st)
	identity := services.NewPostgresIdentity()
	msgs := services.NewMessageService(chat, xp, media)
	deps := handlers.Deps{
		Identity:   identity,
		Accounts:   identity,
		Messages:   msgs,
		Polls:      services.NewPollService(chat, xp),
		Reactions:  services.NewReactionService(chat, xp),
		Reads:      services.NewReadTracker(st, chat),
		XP:         xp,
		Conference: services.NewConferenceService(msgs),
		Chat:       chat,
	}
	handlers.Init(deps)

	// Background pipelines: archive mirror and realtime fan-out
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	services.StartArchiver(ctx, st)
	services.StartRealtimeForwarder(ctx, st)
	log.Println("✅ Archive and realtime pipelines started")

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RateLimit)

	// Health check (no auth)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r)

	log.Printf("🚀 Guildhall backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
