package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// unmatchedRoute labels requests that hit no route, so probing clients cannot
// grow the label set.
const unmatchedRoute = "unmatched"

// HTTPObserver records one finished request.
type HTTPObserver interface {
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}

// Metrics observes every request except the scrape endpoint itself.
func Metrics(observer HTTPObserver, scrapePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if observer == nil || c.Request.URL.Path == scrapePath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		observer.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
