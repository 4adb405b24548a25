package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/pkg/errors"
	"github.com/collegedesk/collegedesk/pkg/response"
)

// RateLimit limits requests per (clientIP, path) within a fixed window. The
// counters live in process memory, which matches a single-instance deployment.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	type counter struct {
		count     int
		windowEnd time.Time
	}

	var (
		mu   sync.Mutex
		data = make(map[string]*counter)
	)

	// Periodically drop expired counters to avoid unbounded growth.
	go func() {
		tick := time.NewTicker(window)
		defer tick.Stop()
		for range tick.C {
			now := time.Now()
			mu.Lock()
			for key, ct := range data {
				if now.After(ct.windowEnd) {
					delete(data, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		now := time.Now()

		mu.Lock()
		ct, ok := data[key]
		if !ok || now.After(ct.windowEnd) {
			ct = &counter{windowEnd: now.Add(window)}
			data[key] = ct
		}
		ct.count++
		count := ct.count
		resetIn := time.Until(ct.windowEnd)
		mu.Unlock()

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
