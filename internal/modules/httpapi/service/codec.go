package service

import (
	"errors"
	"net/http"

	"trade_gateway/internal/models"
	"trade_gateway/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

var errInvalidJSON = errors.New("invalid JSON")

func respond(c *gin.Context, status int, obj any) {
	b, err := sonic.Marshal(obj)
	if err != nil {
		logger.Error("encode response: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json", b)
}

// bind decodes the body into dst; an empty body decodes as {}.
func bind(c *gin.Context, dst any) error {
	raw, err := c.GetRawData()
	if err != nil {
		return errInvalidJSON
	}
	if len(raw) == 0 {
		return nil
	}
	return unmarshal(raw, dst)
}

func unmarshal(raw []byte, dst any) error {
	if err := sonic.Unmarshal(raw, dst); err != nil {
		return errInvalidJSON
	}
	return nil
}

// fail maps the error taxonomy onto status codes.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidJSON):
		respond(c, http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
	case errors.Is(err, models.ErrInvalidInput):
		respond(c, http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		respond(c, http.StatusNotFound, gin.H{"error": "Trade not found"})
	case errors.Is(err, models.ErrUnauthenticated):
		respond(c, http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	default:
		logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		respond(c, http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
