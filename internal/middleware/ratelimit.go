package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// ManualExecuteRateLimiter bounds manual workflow executions to 10 per user
// per minute per workflow, so repeated "Run now" testing cannot exhaust the
// engine. Identity is user + workflow id; unauthenticated requests fall back
// to the client IP.
func ManualExecuteRateLimiter() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(10.0 / 60.0),
			Burst: 10,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			userID, _ := c.Get("user_id").(string)
			if userID == "" {
				userID = c.RealIP()
			}
			return userID + ":" + c.Param("id"), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "rate limit identity error"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "execution rate limit exceeded, try again later"})
		},
	})
}
