package credstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Origin é um meio em memória compartilhado por várias abas.
type Origin struct {
	mu   sync.RWMutex
	data map[string]string
	tabs map[string]*MemoryStore
}

// NewOrigin cria origem vazia.
func NewOrigin() *Origin {
	return &Origin{
		data: make(map[string]string),
		tabs: make(map[string]*MemoryStore),
	}
}

// Tab abre um novo handle sobre a origem.
func (o *Origin) Tab() *MemoryStore {
	tab := &MemoryStore{origin: o, id: uuid.NewString(), events: newDispatcher()}
	o.mu.Lock()
	o.tabs[tab.id] = tab
	o.mu.Unlock()
	return tab
}

// MemoryStore é uma aba sobre uma Origin.
type MemoryStore struct {
	origin *Origin
	id     string
	events *dispatcher
}

var _ Store = (*MemoryStore)(nil)

// Get lê uma chave.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.origin.mu.RLock()
	defer s.origin.mu.RUnlock()
	val, ok := s.origin.data[key]
	return val, ok, nil
}

// Set grava uma chave.
func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany grava todas as chaves sob o mesmo lock.
func (s *MemoryStore) SetMany(_ context.Context, values map[string]string) error {
	changes := make([]Change, 0, len(values))
	for _, key := range sortedKeys(values) {
		changes = append(changes, Change{Key: key, Value: values[key]})
	}

	s.origin.mu.Lock()
	for key, val := range values {
		s.origin.data[key] = val
	}
	s.origin.mu.Unlock()

	s.broadcast(changes)
	return nil
}

// Remove apaga as chaves; chaves ausentes são ignoradas.
func (s *MemoryStore) Remove(_ context.Context, keys ...string) error {
	changes := make([]Change, 0, len(keys))

	s.origin.mu.Lock()
	for _, key := range keys {
		if _, ok := s.origin.data[key]; !ok {
			continue
		}
		delete(s.origin.data, key)
		changes = append(changes, Change{Key: key, Deleted: true})
	}
	s.origin.mu.Unlock()

	s.broadcast(changes)
	return nil
}

// OnExternalChange registra callback para escritas de outras abas.
func (s *MemoryStore) OnExternalChange(fn func(Change)) func() {
	return s.events.subscribe(fn)
}

// Close desliga a aba da origem.
func (s *MemoryStore) Close() error {
	s.origin.mu.Lock()
	delete(s.origin.tabs, s.id)
	s.origin.mu.Unlock()
	s.events.close()
	return nil
}

func (s *MemoryStore) broadcast(changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.origin.mu.RLock()
	defer s.origin.mu.RUnlock()
	for id, tab := range s.origin.tabs {
		if id == s.id {
			continue
		}
		tab.events.publish(changes...)
	}
}
