package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatus(t *testing.T) {
	t.Run("queued refresh is pending", func(t *testing.T) {
		env := newTestEnv(t, &recordingQueue{})

		w := env.do(t, http.MethodPost, "/api/books/b1/refresh", nil)
		require.Equal(t, http.StatusAccepted, w.Code)
		data, ok := decode[SuccessResponse](t, w).Data.(map[string]any)
		require.True(t, ok)
		taskID, _ := data["task_id"].(string)
		require.NotEmpty(t, taskID)

		w = env.do(t, http.MethodGet, "/api/tasks/"+taskID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[map[string]string](t, w)
		assert.Equal(t, taskID, body["id"])
		assert.Equal(t, "pending", body["status"])
	})

	t.Run("unknown task", func(t *testing.T) {
		env := newTestEnv(t, &recordingQueue{})
		w := env.do(t, http.MethodGet, "/api/tasks/task-99", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("status lookup failure", func(t *testing.T) {
		env := newTestEnv(t, &recordingQueue{})
		w := env.do(t, http.MethodGet, "/api/tasks/broken", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("route absent without a queue", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(t, http.MethodGet, "/api/tasks/task-1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
