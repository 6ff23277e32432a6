package di

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	postsadapters "social_backend/internal/feature/posts/adapters"
	"social_backend/internal/platform/cache"
)

// postCacheTTL bounds how long a cached post or listing may be served.
const postCacheTTL = 5 * time.Minute

// NewPostStore creates the post repository.
// If Redis is available, reads are served through a Redis cache.
func NewPostStore(rdb *redis.Client, db *gorm.DB) cache.PostStore {
	store := postsadapters.NewPostGorm(db)
	if rdb == nil {
		return store
	}
	return cache.NewCachingPostRepository(rdb, postCacheTTL, store, "posts")
}
