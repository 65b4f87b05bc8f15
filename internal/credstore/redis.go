package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultPrefix = "painel:store"

// RedisOptions configura o armazenamento em Redis.
type RedisOptions struct {
	// Prefix das chaves; padrão "painel:store".
	Prefix string
	// Origin agrupa abas que compartilham a mesma sessão.
	Origin string
	Logger *zerolog.Logger
}

// RedisStore guarda a origem em um hash Redis e propaga mudanças via pub/sub.
type RedisStore struct {
	client  redis.UniversalClient
	key     string
	channel string
	tabID   string
	pubsub  *redis.PubSub
	events  *dispatcher
	logger  zerolog.Logger
	cancel  context.CancelFunc
}

type changeMessage struct {
	Tab     string `json:"tab"`
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore abre uma aba sobre a origem e já confirma a inscrição no
// canal de mudanças antes de retornar.
func NewRedisStore(ctx context.Context, client redis.UniversalClient, opts RedisOptions) (*RedisStore, error) {
	origin := strings.TrimSpace(opts.Origin)
	if origin == "" {
		return nil, errors.New("credstore: origin obrigatório")
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &RedisStore{
		client:  client,
		key:     fmt.Sprintf("%s:%s", prefix, origin),
		channel: fmt.Sprintf("%s:%s:changes", prefix, origin),
		tabID:   uuid.NewString(),
		events:  newDispatcher(),
		logger:  logger.With().Str("component", "credstore").Str("origin", origin).Logger(),
	}

	s.pubsub = client.Subscribe(ctx, s.channel)
	if _, err := s.pubsub.Receive(ctx); err != nil {
		_ = s.pubsub.Close()
		s.events.close()
		return nil, fmt.Errorf("credstore: subscribe: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.listen(loopCtx)

	return s, nil
}

// Get lê um campo do hash da origem.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set grava um campo.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany grava os campos em uma única transação MULTI.
func (s *RedisStore) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	keys := sortedKeys(values)
	fields := make([]any, 0, len(values)*2)
	for _, key := range keys {
		fields = append(fields, key, values[key])
	}

	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, fields...)
		return nil
	}); err != nil {
		return err
	}

	for _, key := range keys {
		s.announce(ctx, changeMessage{Tab: s.tabID, Key: key, Value: values[key]})
	}
	return nil
}

// Remove apaga os campos em uma única transação. Só campos que existiam
// são anunciados.
func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	removed := make([]*redis.IntCmd, len(keys))
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			removed[i] = pipe.HDel(ctx, s.key, key)
		}
		return nil
	}); err != nil {
		return err
	}
	for i, key := range keys {
		if removed[i].Val() == 0 {
			continue
		}
		s.announce(ctx, changeMessage{Tab: s.tabID, Key: key, Deleted: true})
	}
	return nil
}

// OnExternalChange registra callback para mudanças publicadas por outras abas.
func (s *RedisStore) OnExternalChange(fn func(Change)) func() {
	return s.events.subscribe(fn)
}

// Close encerra a inscrição; o cliente Redis continua aberto.
func (s *RedisStore) Close() error {
	s.cancel()
	s.events.close()
	return s.pubsub.Close()
}

func (s *RedisStore) announce(ctx context.Context, msg changeMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", msg.Key).Msg("credstore: publish falhou")
	}
}

func (s *RedisStore) listen(ctx context.Context) {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var change changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				s.logger.Warn().Err(err).Msg("credstore: mensagem inválida")
				continue
			}
			if change.Tab == s.tabID {
				continue
			}
			s.events.publish(Change{Key: change.Key, Value: change.Value, Deleted: change.Deleted})
		}
	}
}
