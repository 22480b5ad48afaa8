package middleware

import (
	"net/http"
	"strings"

	"ton_mining/internal/logger"
	"ton_mining/internal/service"

	"github.com/gin-gonic/gin"
)

// JWT требует заголовок Authorization: Bearer <token> и кладет user_id в контекст.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		userID, err := service.ParseJWT(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", userID)
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), "user_id", userID))
		c.Next()
	}
}
