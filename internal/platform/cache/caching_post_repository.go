// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social_backend/internal/feature/posts/domain/entity"
	"social_backend/internal/feature/posts/usecase"
)

// PostStore is the full post repository surface: writes plus read queries.
type PostStore interface {
	usecase.PostRepository
	usecase.PostQueryRepository
}

var _ PostStore = (*CachingPostRepository)(nil)

// CachingPostRepository decorates a PostStore with Redis caching.
// Single posts, the full listing and the most-liked ranking are cached;
// every write drops the affected entries. Search and Filter are not cached.
type CachingPostRepository struct {
	inner     PostStore
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewCachingPostRepository decorates a PostStore with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "posts".
// A nil rdb disables caching.
func NewCachingPostRepository(rdb *redis.Client, ttl time.Duration, inner PostStore, namespace string) *CachingPostRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "posts"
	}
	return &CachingPostRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Create stores a post and drops cached listings.
func (c *CachingPostRepository) Create(ctx context.Context, post *entity.Post) error {
	if err := c.inner.Create(ctx, post); err != nil {
		return err
	}
	c.invalidate(ctx, 0)
	return nil
}

// FindByID returns a post, checking the cache first.
func (c *CachingPostRepository) FindByID(ctx context.Context, id uint) (*entity.Post, error) {
	var out *entity.Post
	err := c.cached(ctx, c.postKey(id), &out, func() (any, error) {
		p, err := c.inner.FindByID(ctx, id)
		out = p
		return p, err
	})
	return out, err
}

// List returns all posts newest first, checking the cache first.
func (c *CachingPostRepository) List(ctx context.Context) ([]entity.Post, error) {
	var out []entity.Post
	err := c.cached(ctx, c.queryPrefix()+"list", &out, func() (any, error) {
		ps, err := c.inner.List(ctx)
		out = ps
		return ps, err
	})
	return out, err
}

// Update changes a post and drops its cache entries.
func (c *CachingPostRepository) Update(ctx context.Context, post *entity.Post) (*entity.Post, error) {
	out, err := c.inner.Update(ctx, post)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, post.ID)
	return out, nil
}

// Delete removes a post and drops its cache entries.
func (c *CachingPostRepository) Delete(ctx context.Context, id uint) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

// Like records a like and drops the post and ranking cache entries.
func (c *CachingPostRepository) Like(ctx context.Context, userID, postID uint) (*entity.Post, error) {
	out, err := c.inner.Like(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, postID)
	return out, nil
}

// Search is passed through uncached.
func (c *CachingPostRepository) Search(ctx context.Context, query string) ([]entity.Post, error) {
	return c.inner.Search(ctx, query)
}

// Filter is passed through uncached.
func (c *CachingPostRepository) Filter(ctx context.Context, f entity.PostFilter) ([]entity.Post, error) {
	return c.inner.Filter(ctx, f)
}

// MostLiked returns a ranking page, checking the cache first.
func (c *CachingPostRepository) MostLiked(ctx context.Context, page, limit int) ([]entity.Post, error) {
	var out []entity.Post
	err := c.cached(ctx, fmt.Sprintf("%smostliked:%d:%d", c.queryPrefix(), page, limit), &out, func() (any, error) {
		ps, err := c.inner.MostLiked(ctx, page, limit)
		out = ps
		return ps, err
	})
	return out, err
}

// cached decodes key into dst on a hit. On a miss or a corrupted entry it
// calls load, which must also fill dst, and stores the result (best effort).
// Errors from load are never cached.
func (c *CachingPostRepository) cached(ctx context.Context, key string, dst any, load func() (any, error)) error {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		_, err := load()
		return err
	}

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		if err := json.Unmarshal(b, dst); err == nil {
			return nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to database
	v, err := load()
	if err != nil {
		return err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(v); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return nil
}

// invalidate drops the entry for postID (when non-zero) and every cached listing.
// Failures are ignored; entries expire with the TTL anyway.
func (c *CachingPostRepository) invalidate(ctx context.Context, postID uint) {
	if c.rdb == nil {
		return
	}
	if postID != 0 {
		_ = c.rdb.Del(ctx, c.postKey(postID)).Err()
	}
	_ = c.deleteByPattern(ctx, c.queryPrefix()+"*")
}

func (c *CachingPostRepository) postKey(id uint) string {
	return fmt.Sprintf("%s:post:%d", c.namespace, id)
}

// queryPrefix is shared by all multi-post entries so one SCAN can drop them.
func (c *CachingPostRepository) queryPrefix() string {
	return c.namespace + ":q:"
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingPostRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}
