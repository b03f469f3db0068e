package api

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/errcode"
	"resumeBuilder/internal/metrics"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// loginStore 是登录限流用到的 Redis 命令子集。
type loginStore interface {
	redisRateCounter
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// loginThrottle 限制登录频率：每 IP+邮箱每小时 ratePerHour 次；
// 同一邮箱连续失败 lockThreshold 次后锁定 lockTTL。Redis 不可用时放行。
type loginThrottle struct {
	store         loginStore
	ratePerHour   int
	lockThreshold int
	lockTTL       time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func rateKey(ip, email string, at time.Time) string {
	return "rate:login:" + ip + ":" + email + ":" + at.UTC().Format("2006010215")
}

func lockKey(email string) string     { return "lock:login:" + email }
func failureKey(email string) string  { return "lock:login:fail:" + email }
func throttleEmail(raw string) string { return strings.ToLower(strings.TrimSpace(raw)) }

// allow 在校验密码之前调用，返回 ErrRateLimited 或 ErrAccountLocked。
func (t *loginThrottle) allow(ctx context.Context, ip, rawEmail string) error {
	if t == nil || t.store == nil {
		return nil
	}
	email := throttleEmail(rawEmail)

	count, err := incrWithTTL(ctx, t.store, rateKey(ip, email, t.now()), time.Hour)
	if err != nil {
		t.logger.Warn("login rate counter unavailable", slog.Any("error", err))
		count = 0
	}
	if count > int64(t.ratePerHour) {
		metrics.ObserveLoginThrottled("rate_limit")
		return errcode.ErrRateLimited
	}

	if ttl, err := t.store.TTL(ctx, lockKey(email)).Result(); err == nil && ttl > 0 {
		metrics.ObserveLoginThrottled("locked")
		return errcode.ErrAccountLocked
	}
	return nil
}

func (t *loginThrottle) recordFailure(ctx context.Context, rawEmail string) {
	if t == nil || t.store == nil {
		return
	}
	email := throttleEmail(rawEmail)

	count, err := incrWithTTL(ctx, t.store, failureKey(email), t.lockTTL)
	if err != nil {
		t.logger.Warn("login failure counter unavailable", slog.Any("error", err))
		return
	}
	if count >= int64(t.lockThreshold) {
		if err := t.store.Set(ctx, lockKey(email), "1", t.lockTTL).Err(); err != nil {
			t.logger.Warn("lock account failed", slog.Any("error", err))
			return
		}
		t.logger.Info("login locked after repeated failures", slog.Int64("failures", count))
	}
}

func (t *loginThrottle) reset(ctx context.Context, rawEmail string) {
	if t == nil || t.store == nil {
		return
	}
	_ = t.store.Del(ctx, failureKey(throttleEmail(rawEmail))).Err()
}
