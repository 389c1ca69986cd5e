package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"screenking-server/modules/common/config"
	"screenking-server/modules/common/database"
	redisutil "screenking-server/modules/common/redis"
	"screenking-server/modules/visualize"
)

// Shared Redis client for progress pub/sub; set in main before the
// server starts listening
var progressRedis *goredis.Client

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// allow all origins; tighten per deployment domain in production
		return true
	},
}

// enableCORS - CORS headers for the frontend
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthCheck - liveness endpoint
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "screenking-visualization",
	})
}

// handleProgressWS - stream pipeline progress events for one request
// over WebSocket until the run finishes or the client disconnects
func handleProgressWS(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]
	if requestID == "" {
		http.Error(w, "missing requestId", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if progressRedis == nil {
		conn.WriteJSON(map[string]string{"error": "progress stream unavailable"})
		return
	}

	ctx := r.Context()
	pubsub := progressRedis.Subscribe(ctx, redisutil.ProgressChannel(requestID))
	defer pubsub.Close()

	log.Printf("📡 WebSocket progress stream opened for %s", requestID)

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			log.Printf("📴 Progress stream for %s closed: %v", requestID, err)
			return
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
			log.Printf("📴 WebSocket client for %s disconnected: %v", requestID, err)
			return
		}

		// The 100% event is the last one a run publishes
		var event struct {
			Progress int `json:"progress"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &event); err == nil && event.Progress >= 100 {
			log.Printf("✅ Progress stream for %s complete", requestID)
			return
		}
	}
}

func main() {
	// Load environment configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Start the Redis queue worker in the background
	go visualize.StartWorker(cfg)

	// Router setup
	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ws/visualize/{requestId}", handleProgressWS)

	db := database.NewClient(cfg)
	if db == nil {
		log.Fatal("❌ Failed to create database client")
	}

	rdb := redisutil.Connect(cfg)
	if rdb == nil {
		log.Fatal("❌ Failed to connect to Redis")
	}
	progressRedis = rdb

	handler := visualize.NewHandler(db, rdb)
	handler.RegisterRoutes(r)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 ScreenKing Visualization Server starting on port %s", port)
	log.Printf("📡 Progress stream: ws://localhost:%s/ws/visualize/{requestId}", port)
	log.Printf("❤️  Health check: http://localhost:%s/health", port)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
