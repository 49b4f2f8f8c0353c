package httpapi

import (
	"net/http"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/pkg/logger"

	"github.com/gin-gonic/gin"
)

// respondError translates a classified error into the wire shape. Internal
// detail never leaves the process; it is logged server-side instead.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "error", err.Error())
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   apperr.PublicMessage(err),
	})
}
