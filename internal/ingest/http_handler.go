package ingest

import (
	"net/http"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler exposes the webhook endpoint over gin.
type Handler struct {
	ingestor *Ingestor
}

func NewHandler(ingestor *Ingestor) *Handler {
	return &Handler{ingestor: ingestor}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/webhooks/voice-agent", h.HandleWebhook)
	r.GET("/webhooks/voice-agent", h.HandleLiveness)
}

// HandleWebhook verifies and ingests one delivery. The body is read raw
// before any parsing so signature verification sees the signed bytes.
func (h *Handler) HandleWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Failed to read request body",
		})
		return
	}

	result, err := h.ingestor.Ingest(c.Request.Context(), rawBody, c.GetHeader(SignatureHeader))
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			logger.FromGin(c).Error("webhook processing failed", "error", err.Error())
		}
		c.AbortWithStatusJSON(status, gin.H{
			"success": false,
			"error":   apperr.PublicMessage(err),
		})
		return
	}

	message := "Webhook processed successfully"
	if result.AlreadyProcessed {
		message = "Call already processed"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"callId":  result.CallID,
	})
}

// HandleLiveness lets the provider's endpoint check succeed without a
// signed body.
func (h *Handler) HandleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Webhook endpoint is active",
	})
}
