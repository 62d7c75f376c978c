package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/internal/api/handlers"
	"github.com/hugh/serviexpress/internal/testutil"
	"github.com/hugh/serviexpress/pkg/queue"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_LogMode(t *testing.T) {
	handler := handlers.NewHealthHandler(nil, nil, "log")

	rr := httptest.NewRecorder()
	handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	testutil.AssertStatus(t, rr, http.StatusOK)
	var resp handlers.HealthResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "log", resp.SubmitMode)
	assert.Empty(t, resp.Services)
	assert.Nil(t, resp.Pending)
}

func TestHealthHandler_QueueMode(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })

	handler := handlers.NewHealthHandler(client, inspector, "queue")

	t.Run("empty queue", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		var resp handlers.HealthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "healthy", resp.Services["redis"])
		require.NotNil(t, resp.Pending)
		assert.Equal(t, 0, *resp.Pending)
	})

	t.Run("pending registration", func(t *testing.T) {
		enq := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
		defer enq.Close()
		_, err := enq.Enqueue(asynq.NewTask("registration:deliver", []byte(`{}`)), asynq.Queue(queue.QueueRegistrations))
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		var resp handlers.HealthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.NotNil(t, resp.Pending)
		assert.Equal(t, 1, *resp.Pending)
	})

	t.Run("redis down", func(t *testing.T) {
		mr.Close()

		rr := httptest.NewRecorder()
		handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		var resp handlers.HealthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "unhealthy", resp.Services["redis"])
	})
}

func TestHealthHandler_Ready(t *testing.T) {
	handler := handlers.NewHealthHandler(nil, nil, "log")

	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "ok", rr.Body.String())
}
