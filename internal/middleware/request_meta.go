package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/paperbotai/paperbot/internal/service"
)

// RequestMeta stashes the caller's address and user agent on the request
// context so audit entries can record them.
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := service.RequestMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		c.Request = c.Request.WithContext(service.WithRequestMeta(c.Request.Context(), meta))
		c.Next()
	}
}
