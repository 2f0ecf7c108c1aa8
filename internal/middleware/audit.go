package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campus-ops/institute-api/internal/models"
)

// Audit records an audit entry after successful mutating requests. The sink
// receives the request context and the prepared entry.
func Audit(sink func(c *gin.Context, log *models.AuditLog), action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := c.Get(ContextUserKey); ok {
			user := claims.(*models.JWTClaims)
			userID = &user.UserID
		}

		details, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
			"ip":      c.ClientIP(),
		})

		sink(c, &models.AuditLog{
			UserID:   userID,
			Action:   action,
			Resource: resource,
			Details:  string(details),
		})
	}
}
