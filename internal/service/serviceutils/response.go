package serviceutils

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/locvowork/sheetmap/internal/logger"
)

// GenericResponse is the JSON envelope of every non-file API response.
type GenericResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func ResponseSuccess(c echo.Context, code int, msg string, data interface{}) error {
	return c.JSON(code, GenericResponse{
		Success:   true,
		Message:   msg,
		Data:      data,
		RequestID: logger.RequestID(c.Request().Context()),
	})
}

// ResponseError writes a failure envelope. Server errors are logged with the
// request ID so the response can be matched to the log line.
func ResponseError(c echo.Context, code int, msg string, err error) error {
	ctx := c.Request().Context()
	resp := GenericResponse{
		Success:   false,
		Message:   msg,
		RequestID: logger.RequestID(ctx),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if code >= http.StatusInternalServerError {
		logger.ErrorLog(ctx, "%s %s: %s: %v", c.Request().Method, c.Path(), msg, err)
	}
	return c.JSON(code, resp)
}

// ResponseAttachment sends data as a file download named filename.
func ResponseAttachment(c echo.Context, filename, contentType string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(len(data)))
	return c.Blob(http.StatusOK, contentType, data)
}
