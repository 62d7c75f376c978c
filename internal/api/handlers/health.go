package handlers

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/pkg/queue"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports on the dependencies of the configured submit mode.
// redis and inspector are nil unless registrations go through the queue.
type HealthHandler struct {
	redis      *redis.Client
	inspector  *asynq.Inspector
	submitMode string
}

func NewHealthHandler(redis *redis.Client, inspector *asynq.Inspector, submitMode string) *HealthHandler {
	return &HealthHandler{redis: redis, inspector: inspector, submitMode: submitMode}
}

type HealthResponse struct {
	Status     string            `json:"status"`
	SubmitMode string            `json:"submit_mode"`
	Services   map[string]string `json:"services"`
	Pending    *int              `json:"pending_registrations,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]string)
	status := "healthy"
	resp := HealthResponse{SubmitMode: h.submitMode}

	// Check Redis
	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			services["redis"] = "unhealthy"
			status = "unhealthy"
		} else {
			services["redis"] = "healthy"
		}
	}

	if h.inspector != nil && status == "healthy" {
		if pending, ok := h.pendingRegistrations(); ok {
			resp.Pending = &pending
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	resp.Status = status
	resp.Services = services
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// pendingRegistrations is informational only. A queue nobody has written to
// yet does not exist in Redis and counts as empty.
func (h *HealthHandler) pendingRegistrations() (int, bool) {
	queues, err := h.inspector.Queues()
	if err != nil {
		return 0, false
	}
	if !slices.Contains(queues, queue.QueueRegistrations) {
		return 0, true
	}

	info, err := h.inspector.GetQueueInfo(queue.QueueRegistrations)
	if err != nil {
		return 0, false
	}
	return info.Pending + info.Retry, true
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
