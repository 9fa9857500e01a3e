// Package api holds the gin handlers. Handlers stay thin: bind input,
// call into the governance packages, map errors through the apperr
// taxonomy. No business rules live here.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/apperr"
)

// respondError writes the taxonomy-mapped status with an {"error": ...}
// body. Unclassified errors become a generic 500; the real cause goes
// to the log, not the client.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondBadRequest is for binding failures, which carry validator text
// safe to echo.
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
