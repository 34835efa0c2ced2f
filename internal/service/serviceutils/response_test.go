package serviceutils

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/locvowork/sheetmap/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(requestID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/imports/b1", nil)
	req = req.WithContext(logger.WithRequestID(req.Context(), requestID))
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestResponseEnvelope(t *testing.T) {
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	t.Run("success", func(t *testing.T) {
		c, rec := newContext("req-1")
		require.NoError(t, ResponseSuccess(c, http.StatusOK, "Import retrieved", map[string]int{"total_rows": 3}))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"message":"Import retrieved","data":{"total_rows":3},"request_id":"req-1"}`, rec.Body.String())
	})

	t.Run("client error is not logged", func(t *testing.T) {
		logs.Reset()
		c, rec := newContext("req-2")
		require.NoError(t, ResponseError(c, http.StatusNotFound, "Import not found", errors.New("no such batch")))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "no such batch", body["error"])
		assert.Equal(t, "req-2", body["request_id"])
		assert.NotContains(t, body, "data")
		assert.Empty(t, logs.String())
	})

	t.Run("server error is logged with request id", func(t *testing.T) {
		logs.Reset()
		c, rec := newContext("req-3")
		require.NoError(t, ResponseError(c, http.StatusInternalServerError, "Failed to load import", errors.New("datastore unavailable")))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, logs.String(), "datastore unavailable")
		assert.Contains(t, logs.String(), "req-3")
	})
}

func TestResponseAttachment(t *testing.T) {
	c, rec := newContext("")
	require.NoError(t, ResponseAttachment(c, "employees_20240102.xlsx", "application/octet-stream", []byte("abc")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="employees_20240102.xlsx"`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.Equal(t, "3", rec.Header().Get(echo.HeaderContentLength))
	assert.Equal(t, "abc", rec.Body.String())
}
