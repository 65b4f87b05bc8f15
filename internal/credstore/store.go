// Package credstore guarda credenciais e perfil da sessão em um meio
// persistente por origem, com notificação de mudanças feitas por outras abas.
package credstore

import (
	"context"
	"sort"
	"sync"
)

// Chaves persistidas pela sessão.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeyLoginLockout = "login_lockout"
)

// SessionKeys são removidas juntas no logout.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Change descreve uma mutação observada em outra aba.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// Store é o primitivo de persistência usado pela sessão. Chave ausente não é
// erro: Get devolve ok=false.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// SetMany grava todas as chaves de uma vez; nenhum leitor vê escrita parcial.
	SetMany(ctx context.Context, values map[string]string) error
	Remove(ctx context.Context, keys ...string) error
	// OnExternalChange registra callback para mutações de outras abas da
	// mesma origem. A função devolvida cancela o registro.
	OnExternalChange(fn func(Change)) (cancel func())
}

// dispatcher entrega mudanças aos callbacks em ordem, fora da goroutine do
// escritor.
type dispatcher struct {
	mu        sync.Mutex
	listeners map[int]func(Change)
	nextID    int
	queue     []Change
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		listeners: make(map[int]func(Change)),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *dispatcher) subscribe(fn func(Change)) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *dispatcher) publish(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	d.mu.Lock()
	d.queue = append(d.queue, changes...)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) loop() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			change := d.queue[0]
			d.queue = d.queue[1:]
			fns := make([]func(Change), 0, len(d.listeners))
			for id := 0; id < d.nextID; id++ {
				if fn, ok := d.listeners[id]; ok {
					fns = append(fns, fn)
				}
			}
			d.mu.Unlock()

			for _, fn := range fns {
				fn(change)
			}
		}
	}
}

func (d *dispatcher) close() {
	d.closeOnce.Do(func() { close(d.done) })
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
