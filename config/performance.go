package config

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request with its latency and flags the slow
// ones. External gateways live behind the reminder loop, not the request
// path, so anything past half a second here is worth a look.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		log.Printf("[HTTP] %s %s | Status: %d | Time: %v",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			latency)

		if latency > 500*time.Millisecond {
			log.Printf("SLOW REQUEST: %s %s took %v",
				c.Request.Method, c.Request.URL.Path, latency)
		}
	}
}
