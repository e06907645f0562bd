package appServer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gabrie-lhilarion/spacemania/config"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/gabrie-lhilarion/spacemania/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: "0", RequestTimeout: time.Second},
		Storage: config.StorageConfig{Driver: "memory"},
		Booking: config.BookingConfig{
			Occupancy:              "exclusive",
			AdvanceNotice:          24 * time.Hour,
			DefaultPageSize:        10,
			MaxPageSize:            100,
			MaxSpecialRequestChars: 1000,
			WorkspaceCacheTTL:      time.Minute,
		},
		Worker: config.WorkerConfig{CompletionInterval: time.Hour},
		JWT:    config.JWTConfig{Secret: "secret"},
		Log:    config.LogConfig{Level: "error"},
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBuild_Memory(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer app.Close()

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var health struct {
		Status     string                     `json:"status"`
		Components map[string]json.RawMessage `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Contains(t, health.Components, "completion_worker")
	assert.NotContains(t, health.Components, "task_queue")

	w = httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBuild_RejectsBadConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Booking.Occupancy = "fifo"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Storage.Driver = "sqlite"
	_, err = Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuild_RedisQueueDeliversEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := memoryConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port, PoolSize: 4}
	cfg.Notifications.RedisQueue = config.RedisQueueConfig{
		Enabled:    true,
		Queue:      "test:tasks",
		DLQ:        "test:dlq",
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(ctx, cfg)
	require.NoError(t, err)
	defer app.Close()
	require.NoError(t, app.Start(ctx))

	room, err := app.WorkspaceService.CreateWorkspace(ctx, &service.CreateWorkspaceRequest{
		Name: "Focus Pod", Type: "pod", Capacity: 2,
	})
	require.NoError(t, err)

	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	attendees := 2
	result, err := app.BookingService.CreateBooking(ctx, &service.CreateBookingRequest{
		UserID:      1,
		WorkspaceID: room.ID,
		StartTime:   entity.ISOTime{Time: start},
		EndTime:     entity.ISOTime{Time: start.Add(time.Hour)},
		Attendees:   &attendees,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, result.Booking.Status)

	assert.True(t, mr.Exists("workspace:"+strconv.FormatInt(room.ID, 10)), "workspace lookups go through the cache")

	assert.Eventually(t, func() bool {
		return mr.HGet("spacemania:queue:metrics", "tasks_success") == "1"
	}, 5*time.Second, 20*time.Millisecond)

	assert.False(t, mr.Exists("test:dlq"), "the log notifier never fails")

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"task_queue"`)
}
