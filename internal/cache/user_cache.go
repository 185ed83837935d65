// Package cache はRedisを使用したユーザースナップショットのキャッシュを提供する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/pickvote/internal/model"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss はキーが存在しない、またはスナップショットを復元できないことを表す。
// 呼び出し側はストアへのフォールバックとして扱う。
var ErrCacheMiss = errors.New("cache miss")

const userKeyPrefix = "user:"

// UserCache はユーザースナップショットのキャッシュインターフェース。
// Get/Set/Deleteのいずれもシリアライズ・接続エラーを返しうるが、
// 呼び出し側（user.Service）はそれをソフト障害として吸収する契約。
type UserCache interface {
	// Get は指定ユーザーIDのスナップショットを取得する。
	// キーが存在しない、または復元に失敗した場合はErrCacheMissを返す。
	Get(ctx context.Context, userID string) (*model.CachedUser, error)
	// Set はスナップショットをTTL付きで保存する。既存エントリは上書きされる。
	Set(ctx context.Context, snapshot *model.CachedUser) error
	// Delete は指定ユーザーIDのエントリを削除する。キーが存在しなくてもエラーにしない。
	Delete(ctx context.Context, userID string) error
}

// RedisUserCache はRedisによるUserCacheの実装。
type RedisUserCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisUserCache はRedisに接続してRedisUserCacheを生成する。
// redisURLは接続URLを指定する（例: "redis://localhost:6379/0"）。
func NewRedisUserCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisUserCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	c := redis.NewClient(opts)

	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisUserCache{client: c, ttl: ttl}, nil
}

// Get は指定ユーザーIDのスナップショットを取得する。
// デシリアライズ失敗はErrCacheMissとして報告する。壊れたエントリを
// 致命的エラー扱いするとストアへのフォールバックが機能しなくなるため。
func (c *RedisUserCache) Get(ctx context.Context, userID string) (*model.CachedUser, error) {
	data, err := c.client.Get(ctx, userKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached user: %w", err)
	}

	var snapshot model.CachedUser
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: failed to decode cached user: %v", ErrCacheMiss, err)
	}

	return &snapshot, nil
}

// Set はスナップショットをTTL付きで保存する。
// 既存エントリを無条件に上書きしTTLをリフレッシュする。
func (c *RedisUserCache) Set(ctx context.Context, snapshot *model.CachedUser) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode cached user: %w", err)
	}

	if err := c.client.Set(ctx, userKey(snapshot.UserID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached user: %w", err)
	}

	return nil
}

// Delete は指定ユーザーIDのエントリを削除する。
func (c *RedisUserCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, userKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached user: %w", err)
	}
	return nil
}

// Close はRedisクライアントを閉じる。
func (c *RedisUserCache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}

// userKey はユーザーIDからキャッシュキーを構築する。
func userKey(userID string) string {
	return userKeyPrefix + userID
}

// compile-time interface check
var _ UserCache = (*RedisUserCache)(nil)
