package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLocked indica excesso de falhas de login para a identificação.
	ErrLocked = errors.New("login temporariamente bloqueado")
	// ErrLockoutUnavailable indica Redis inacessível para o contador.
	ErrLockoutUnavailable = errors.New("lockout indisponível")
)

type lockoutRedis interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// LoginLockout conta falhas de login por identificação no Redis. O contador
// expira Window depois da primeira falha, o que também encerra o bloqueio.
type LoginLockout struct {
	redis       lockoutRedis
	maxFailures int
	window      time.Duration
}

// NewLoginLockout cria o contador.
func NewLoginLockout(rdb lockoutRedis, maxFailures int, window time.Duration) *LoginLockout {
	if maxFailures <= 0 {
		maxFailures = 6
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &LoginLockout{redis: rdb, maxFailures: maxFailures, window: window}
}

func (l *LoginLockout) key(idNumber string) string {
	return "painel:login_fail:" + strings.ToLower(strings.TrimSpace(idNumber))
}

// RecordFailure soma uma falha e informa se o limite foi atingido.
func (l *LoginLockout) RecordFailure(ctx context.Context, idNumber string) (bool, error) {
	count, err := l.redis.Incr(ctx, l.key(idNumber)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(idNumber), l.window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}
	return count >= int64(l.maxFailures), nil
}

// Locked informa se a identificação atingiu o limite dentro da janela.
func (l *LoginLockout) Locked(ctx context.Context, idNumber string) (bool, error) {
	count, err := l.redis.Get(ctx, l.key(idNumber)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return count >= int64(l.maxFailures), nil
}

// Reset zera o contador após login bem-sucedido.
func (l *LoginLockout) Reset(ctx context.Context, idNumber string) error {
	if err := l.redis.Del(ctx, l.key(idNumber)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}
