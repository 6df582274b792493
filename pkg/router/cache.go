package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
)

// HttpCacheInMemory caches GET responses for listing endpoints. The key
// includes the query string so filtered listings do not collide on path.
func HttpCacheInMemory(ttl int) fiber.Handler {
	if ttl <= 0 {
		ttl = 5
	}
	return cache.New(cache.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.OriginalURL()
		},
		Expiration:   time.Duration(ttl) * time.Second,
		CacheControl: true,
	})
}
