// Command stubserver is a local stand-in for the Twist server and the
// routing service, so the sync engine can be exercised without network
// access. It serves the list, geometry, dropdown, creation, and deletion
// endpoints, an OSRM-shaped route endpoint, and the notification feed.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"twistmap/internal/config"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 TWISTMAP STUB SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	log.Println("📂 Loading environment variables...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ FATAL ERROR: invalid configuration: %v", err)
	}

	store := newTwistStore()
	log.Println("🌱 Seeded in-memory twists")

	hub := NewHub()
	go hub.Run()
	log.Println("✅ WebSocket hub started")

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Notification feed
	r.Get("/ws", hub.HandleWebSocket)

	// Routing service, OSRM request/response shape
	r.Get("/route/v1/driving/{coords}", route())

	// Twist endpoints
	r.Route("/twists", func(r chi.Router) {
		r.Get("/templates/list", listTwists(store, cfg.DefaultTwistsLoaded, cfg.MaxTwistsLoaded))
		r.Get("/{id}/geometry", getGeometry(store))
		r.Get("/{id}/templates/dropdown", getDropdown(store))
		r.Post("/", createTwist(store, hub))
		r.Delete("/{id}", deleteTwist(store, hub))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Printf("✅ Stub server listening on port %s", port)
	log.Println("═══════════════════════════════════════════════════════════════════")

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
