package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hgj313/hr2-sub000/config"
	"github.com/hgj313/hr2-sub000/pkg/lock"
)

// Client Redis 客户端封装
// 用于排班/资源的分布式锁以及接口限流
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ── 分布式锁 ──

const lockPrefix = "hrs:lock:"

// 仅当 value 仍为自己的 token 时删除，防止误删他人续上的锁
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 仅当 value 仍为自己的 token 时续期
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// AcquireLock 尝试一次 SET NX PX，成功返回 true
func (c *Client) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockPrefix+key, token, ttl).Result()
}

// ReleaseLock 按 token 释放锁，锁已过期或被他人持有时返回 false
func (c *Client) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, c.rdb, []string{lockPrefix + key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExtendLock 按 token 将锁的过期时间重置为 ttl，锁已过期或被他人持有时返回 false
func (c *Client) ExtendLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, c.rdb, []string{lockPrefix + key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Locker 基于 Redis 的 lock.Locker 实现
// 持有期间后台每 ttl/3 续期一次，持有时间不受 ttl 限制；进程退出后锁在 ttl 内自动过期
type Locker struct {
	client *Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewLocker ttl 为锁自动过期时间，wait 为最长等待时间
func (c *Client) NewLocker(ttl, wait time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: c, ttl: ttl, wait: wait, retry: 50 * time.Millisecond}
}

// Lock 轮询获取锁直到成功、ctx 结束或超过等待时间
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.AcquireLock(waitCtx, key, token, l.ttl)
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, lock.ErrLockTimeout
			}
			return nil, fmt.Errorf("获取分布式锁失败: %w", err)
		}
		if ok {
			return l.unlockFunc(key, token, l.watch(key, token)), nil
		}

		select {
		case <-waitCtx.Done():
			return nil, lock.ErrLockTimeout
		case <-ticker.C:
		}
	}
}

// watch 持有期间定期续期，直到 stop 被调用或续期失败
func (l *Locker) watch(key, token string) (stop func()) {
	done := make(chan struct{})
	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), interval)
			ok, err := l.client.ExtendLock(ctx, key, token, l.ttl)
			cancel()
			if err != nil {
				l.client.logger.Warn("分布式锁续期失败", zap.String("key", key), zap.Error(err))
				return
			}
			if !ok {
				l.client.logger.Warn("分布式锁已丢失，停止续期", zap.String("key", key))
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (l *Locker) unlockFunc(key, token string, stop func()) func() {
	return func() {
		stop()

		// 使用独立 ctx，调用方 ctx 已取消时也要释放
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		released, err := l.client.ReleaseLock(ctx, key, token)
		if err != nil {
			l.client.logger.Warn("释放分布式锁失败", zap.String("key", key), zap.Error(err))
			return
		}
		if !released {
			l.client.logger.Warn("分布式锁已过期或被他人持有", zap.String("key", key))
		}
	}
}

// ── 限流 ──

// CheckRateLimit 滑动窗口限流：窗口内请求数未超过 limit 时放行
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()[:8]
	minScore := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+minScore)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, key)
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return count.Val() <= int64(limit), nil
}
