// Package cache 提供 Redis 缓存操作的封装
// 处理每用户活跃会话的快速查询和 JWT 黑名单
// 缓存只是加速层，数据库永远是权威数据源，
// 缓存失败不应导致业务操作失败
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/config"
)

// activeSessionTTL 活跃会话缓存的过期时间
// 取值大于回收器的过期阈值，保证缓存不会先于会话本身失效
const activeSessionTTL = 48 * time.Hour

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: 应用配置（包含 Redis 连接信息）
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// ==================== 活跃会话缓存 ====================
// getActiveSession 是计时器界面轮询最频繁的调用，
// 用 Redis 记住每个用户当前的会话 ID，省掉一次数据库查询

// SetActiveSession 记录用户当前的活跃会话
// 在 start() 成功后调用
func (c *RedisCache) SetActiveSession(ctx context.Context, userID, sessionID int64) error {
	return c.client.Set(ctx, activeSessionKey(userID), sessionID, activeSessionTTL).Err()
}

// GetActiveSession 获取用户当前的活跃会话 ID
// 没有缓存返回 0，调用方需要回落到数据库查询
func (c *RedisCache) GetActiveSession(ctx context.Context, userID int64) (int64, error) {
	id, err := c.client.Get(ctx, activeSessionKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return id, err
}

// ClearActiveSession 清除用户的活跃会话缓存
// 在 stop() 或回收器关闭会话后调用
func (c *RedisCache) ClearActiveSession(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, activeSessionKey(userID)).Err()
}

// activeSessionKey 活跃会话缓存的 Key
func activeSessionKey(userID int64) string {
	return fmt.Sprintf("user:%d:active_session", userID)
}

// ==================== JWT 黑名单 ====================
// 用户登出后，Token 在剩余有效期内被加入黑名单

// BlacklistToken 将 Token 加入黑名单
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的 SHA256 哈希（不存储原始 Token）
//   - ttl: 黑名单保留时间，取 Token 的剩余有效期
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token 已经过期，无需加入黑名单
		return nil
	}
	return c.client.Set(ctx, blacklistKey(tokenHash), 1, ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	exists, err := c.client.Exists(ctx, blacklistKey(tokenHash)).Result()
	if err != nil {
		// Redis 不可用时放行，认证仍由 JWT 签名保证
		return false
	}
	return exists > 0
}

// blacklistKey JWT 黑名单的 Key
func blacklistKey(tokenHash string) string {
	return fmt.Sprintf("jwt:blacklist:%s", tokenHash)
}
