package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

// proxy relays the request's query string to the catalog and writes the
// upstream body back unchanged.
func (h *handler) proxy(path func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := path(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()

		resp, err := h.catalog.Fetch(ctx, p, c.Request.URL.Query())
		if err != nil {
			code := http.StatusInternalServerError
			var se *samehadaku.StatusError
			if errors.As(err, &se) {
				code = se.Status
			}
			h.logger.Warn("Proxy error", zap.String("path", p), zap.Int("status", code), zap.Error(err))
			_ = c.Error(err)
			c.JSON(code, gin.H{
				"error":   "Failed to fetch data",
				"message": err.Error(),
			})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", resp.Body)
	}
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}
