package handler

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/ticket-webhook/internal/fulfillment"
	"go.uber.org/zap"
)

const homeBanner = "<h1>Twilio Dialogflow Whatsapp Integration"

// HealthHandler answers liveness and readiness probes. components maps each
// downstream client to whether it was built at startup.
type HealthHandler struct {
	components map[string]bool
}

func NewHealthHandler(components map[string]bool) *HealthHandler {
	return &HealthHandler{components: components}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ticket-webhook",
		"time":    time.Now().Unix(),
	})
}

// Ready reports 503 while any downstream client is missing; the process
// keeps serving so handlers can answer with configuration errors.
func (h *HealthHandler) Ready(c *gin.Context) {
	for _, ok := range h.components {
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "components": h.components})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": h.components})
}

func Home(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(homeBanner))
}

// Apologize turns a panic in the handlers after it into a fulfillment
// apology with HTTP 500.
func Apologize(log *zap.Logger, text string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("webhook panic", zap.String("path", c.FullPath()), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, fulfillment.Reply(text, nil))
			}
		}()
		c.Next()
	}
}
