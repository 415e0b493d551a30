package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/libroom/reservations/pkg/queue"
)

type stubStats struct {
	stats queue.Stats
	err   error
}

func (s stubStats) Stats(context.Context) (queue.Stats, error) { return s.stats, s.err }

func serveStats(src StatsSource) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/maintenance/archive-queue", NewHandler(src, nil).QueueStats)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/maintenance/archive-queue", nil))
	return w
}

func TestQueueStats(t *testing.T) {
	w := serveStats(stubStats{stats: queue.Stats{Pending: 3, DeadLetters: 1}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"pending":3,"dead_letters":1}}`, w.Body.String())
}

func TestQueueStatsUnavailable(t *testing.T) {
	w := serveStats(stubStats{err: errors.New("connection refused")})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
