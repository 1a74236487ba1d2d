package service

import (
	"net/http"
	"time"

	authsvc "trade_gateway/internal/modules/auth/service"
	"trade_gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// CORS answers every preflight with 200 and stamps the headers on every response.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// RequestLog пишет одну строку на запрос через общий логгер.
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("%s - %s %s %d %s",
			c.ClientIP(), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		logger.Error("panic in %s %s: %v", c.Request.Method, c.Request.URL.Path, rec)
		respond(c, http.StatusInternalServerError, gin.H{"error": "Internal error"})
		c.Abort()
	})
}

// RequireAuth rejects requests without a known bearer token. allowQuery also
// accepts ?token= for clients that cannot set headers (websocket).
func RequireAuth(sessions Sessions, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := authsvc.BearerToken(c.GetHeader("Authorization"))
		if token == "" && allowQuery {
			token = c.Query("token")
		}
		user, err := sessions.User(token)
		if err != nil {
			respond(c, http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}
