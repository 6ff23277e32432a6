// Package ratelimit は Redis を使った固定ウィンドウ方式の頻度制限を提供します。
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultResetLimit はウィンドウあたりのリセット要求の上限です。
	DefaultResetLimit = 3
	// DefaultResetWindow はカウンタをリセットする間隔です。
	DefaultResetWindow = 15 * time.Minute
)

// ResetThrottle はメールアドレスごとにパスワードリセット要求の回数を制限します。
// カウンタは INCR で増やし、ウィンドウの最初の要求で有効期限を設定します。
type ResetThrottle struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewResetThrottle は ResetThrottle を生成します。limit・window が0以下ならデフォルト値を使います。
func NewResetThrottle(client *redis.Client, prefix string, limit int, window time.Duration) *ResetThrottle {
	if limit <= 0 {
		limit = DefaultResetLimit
	}
	if window <= 0 {
		window = DefaultResetWindow
	}
	if prefix == "" {
		prefix = "reset-throttle"
	}
	return &ResetThrottle{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// key はメールアドレスごとのカウンタキーを返します。
func (t *ResetThrottle) key(email string) string {
	return fmt.Sprintf("%s:%s", t.prefix, strings.ToLower(email))
}

// Allow は要求を1回数え、上限以内なら true を返します。
func (t *ResetThrottle) Allow(ctx context.Context, email string) (bool, error) {
	key := t.key(email)
	n, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", key, err)
	}
	if n == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return n <= t.limit, nil
}
