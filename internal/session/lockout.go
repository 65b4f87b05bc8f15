package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iermgmt/painel/internal/credstore"
)

// LockoutPolicy define o bloqueio local após falhas consecutivas de login.
// É apenas ergonomia: o limite autoritativo fica no servidor.
type LockoutPolicy struct {
	MaxAttempts int
	Window      time.Duration
	Duration    time.Duration
}

// DefaultLockoutPolicy bloqueia por 5 minutos após 6 falhas em 5 minutos.
var DefaultLockoutPolicy = LockoutPolicy{
	MaxAttempts: 6,
	Window:      5 * time.Minute,
	Duration:    5 * time.Minute,
}

type lockoutRecord struct {
	Attempts     int   `json:"attempts"`
	FirstFailure int64 `json:"first_failure"`
	LockedAt     int64 `json:"locked_at,omitempty"`
}

// Throttle conta falhas de login e persiste o bloqueio no Store, de modo que
// recarregar a página não zera o contador.
type Throttle struct {
	store  credstore.Store
	policy LockoutPolicy
	now    func() time.Time
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewThrottle cria o contador; campos zerados da política usam o padrão.
func NewThrottle(store credstore.Store, policy LockoutPolicy, logger zerolog.Logger) *Throttle {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultLockoutPolicy.MaxAttempts
	}
	if policy.Window <= 0 {
		policy.Window = DefaultLockoutPolicy.Window
	}
	if policy.Duration <= 0 {
		policy.Duration = DefaultLockoutPolicy.Duration
	}
	return &Throttle{store: store, policy: policy, now: time.Now, logger: logger}
}

// Check devolve AuthError locked enquanto o bloqueio estiver vigente. Um
// bloqueio vencido é apagado junto com o contador.
func (t *Throttle) Check(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.load(ctx)
	if !ok || rec.LockedAt == 0 {
		return nil
	}
	until := time.UnixMilli(rec.LockedAt).Add(t.policy.Duration)
	if t.now().Before(until) {
		return &AuthError{Kind: KindLocked, Until: until}
	}
	t.clear(ctx)
	return nil
}

// RecordFailure soma uma falha e informa se o limite foi atingido.
func (t *Throttle) RecordFailure(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.load(ctx)
	if !ok || now.Sub(time.UnixMilli(rec.FirstFailure)) > t.policy.Window {
		rec = lockoutRecord{}
	}
	if rec.Attempts == 0 {
		rec.FirstFailure = now.UnixMilli()
	}
	rec.Attempts++
	locked := rec.Attempts >= t.policy.MaxAttempts
	if locked {
		rec.LockedAt = now.UnixMilli()
	}

	raw, err := json.Marshal(rec)
	if err == nil {
		err = t.store.Set(ctx, credstore.KeyLoginLockout, string(raw))
	}
	if err != nil {
		t.logger.Warn().Err(err).Msg("lockout: não foi possível persistir contador")
	}
	return locked
}

// Reset zera o contador (login bem-sucedido).
func (t *Throttle) Reset(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clear(ctx)
}

// Attempts devolve as falhas contadas na janela atual.
func (t *Throttle) Attempts(ctx context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.load(ctx)
	if !ok {
		return 0
	}
	return rec.Attempts
}

func (t *Throttle) load(ctx context.Context) (lockoutRecord, bool) {
	raw, ok, err := t.store.Get(ctx, credstore.KeyLoginLockout)
	if err != nil {
		t.logger.Warn().Err(err).Msg("lockout: leitura falhou")
		return lockoutRecord{}, false
	}
	if !ok {
		return lockoutRecord{}, false
	}
	var rec lockoutRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return lockoutRecord{}, false
	}
	return rec, true
}

func (t *Throttle) clear(ctx context.Context) {
	if err := t.store.Remove(ctx, credstore.KeyLoginLockout); err != nil {
		t.logger.Warn().Err(err).Msg("lockout: não foi possível limpar contador")
	}
}
