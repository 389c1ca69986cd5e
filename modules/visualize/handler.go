package visualize

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/gorilla/mux"

	"screenking-server/modules/common/database"
	"screenking-server/modules/common/model"
	redisutil "screenking-server/modules/common/redis"
)

// Handler - HTTP surface for the visualization queue: enqueue, status
// polling and user cancellation
type Handler struct {
	db  *database.Client
	rdb *goredis.Client
}

func NewHandler(db *database.Client, rdb *goredis.Client) *Handler {
	return &Handler{db: db, rdb: rdb}
}

// RegisterRoutes - attach the visualization endpoints
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/visualize/enqueue", h.EnqueueJob).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/visualize/{requestId}/status", h.GetStatus).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/visualize/{requestId}/cancel", h.CancelJob).Methods("POST", "OPTIONS")
	log.Println("✅ Visualize routes registered: /api/visualize/enqueue, /api/visualize/{requestId}/status, /api/visualize/{requestId}/cancel")
}

// EnqueueRequest - enqueue payload; the request row must already exist
type EnqueueRequest struct {
	RequestID string `json:"request_id"`
}

// EnqueueJob - push a pending request onto the worker queue
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to parse enqueue request: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: request_id")
		return
	}

	request, err := h.db.FetchRequest(req.RequestID)
	if err != nil {
		log.Printf("❌ Request not found: %s (%v)", req.RequestID, err)
		writeError(w, http.StatusNotFound, "Request not found")
		return
	}

	if model.IsTerminal(request.Status) {
		writeError(w, http.StatusConflict, "Request already finished: "+request.Status)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.rdb.LPush(ctx, redisutil.QueueKey, req.RequestID).Err(); err != nil {
		log.Printf("❌ Failed to enqueue request %s: %v", req.RequestID, err)
		writeError(w, http.StatusInternalServerError, "Failed to enqueue request")
		return
	}

	position, _ := h.rdb.LLen(ctx, redisutil.QueueKey).Result()
	log.Printf("📬 Request %s enqueued (queue length: %d)", req.RequestID, position)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"request_id":     req.RequestID,
		"status":         model.StatusPending,
		"queue_position": position,
	})
}

// GetStatus - current status, progress and message for a request
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	requestID := mux.Vars(r)["requestId"]

	request, err := h.db.FetchRequest(requestID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Request not found")
		return
	}

	response := map[string]interface{}{
		"request_id": request.RequestID,
		"status":     request.Status,
		"progress":   request.ProgressPercent,
	}
	if request.StatusMessage != nil {
		response["status_message"] = *request.StatusMessage
	}
	if request.ErrorMessage != nil {
		response["error_message"] = *request.ErrorMessage
	}

	json.NewEncoder(w).Encode(response)
}

// CancelJob - raise the cancel flag for a running request. The worker
// picks it up at the next stage boundary.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	requestID := mux.Vars(r)["requestId"]

	request, err := h.db.FetchRequest(requestID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Request not found")
		return
	}

	if model.IsTerminal(request.Status) {
		writeError(w, http.StatusConflict, "Request already finished: "+request.Status)
		return
	}

	if err := redisutil.SetJobCancelled(h.rdb, requestID); err != nil {
		log.Printf("❌ Failed to set cancel flag for %s: %v", requestID, err)
		writeError(w, http.StatusInternalServerError, "Failed to cancel request")
		return
	}

	log.Printf("🛑 Cancel requested for %s", requestID)

	json.NewEncoder(w).Encode(map[string]string{
		"request_id": requestID,
		"status":     "cancel_requested",
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
