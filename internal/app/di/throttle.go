package di

import (
	"github.com/redis/go-redis/v9"

	"social_backend/internal/feature/auth/usecase"
	"social_backend/internal/platform/ratelimit"
)

// NewResetThrottle creates a Redis-backed password reset throttle.
// Without Redis it returns nil and reset requests are not limited.
func NewResetThrottle(rdb *redis.Client) usecase.ResetThrottle {
	if rdb == nil {
		return nil
	}
	return ratelimit.NewResetThrottle(rdb, "reset-throttle", ratelimit.DefaultResetLimit, ratelimit.DefaultResetWindow)
}
