package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/locvowork/sheetmap/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	e := echo.New()
	var seen string
	h := RequestID(func(c echo.Context) error {
		seen = logger.RequestID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	t.Run("propagates header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRequestID, "req-42")
		rec := httptest.NewRecorder()

		assert.NoError(t, h(e.NewContext(req, rec)))
		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("generates when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		assert.NoError(t, h(e.NewContext(req, rec)))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))
	})
}

func TestRegisterRoutes(t *testing.T) {
	a := NewApp()
	a.RegisterRoutes(nil)

	routes := map[string]bool{}
	for _, r := range a.Echo.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /employees/export",
		"POST /employees/import",
		"GET /imports/:id",
		"GET /imports/:id/issues",
		"DELETE /imports/:id",
		"GET /reports/departments",
		"POST /tables/preview",
	} {
		assert.True(t, routes[want], want)
	}
}
