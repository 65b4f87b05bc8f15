package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const (
	refreshBytes = 32
	// RefreshActive é o valor gravado no Redis enquanto o token vale.
	RefreshActive = "active"
)

// ErrInvalidRefresh indica token com formato que o servidor nunca emitiu.
var ErrInvalidRefresh = errors.New("refresh token inválido")

// RefreshToken é o token opaco entregue ao cliente e o hash que o representa
// no banco e no Redis. Raw nunca é persistido.
type RefreshToken struct {
	Raw  string
	Hash string
}

// NewRefreshToken sorteia um token novo.
func NewRefreshToken() (RefreshToken, error) {
	buf := make([]byte, refreshBytes)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	return RefreshToken{Raw: raw, Hash: hashRefresh(raw)}, nil
}

// ParseRefreshToken aceita só tokens no formato emitido por NewRefreshToken,
// evitando consultas para lixo enviado pelo cliente.
func ParseRefreshToken(raw string) (RefreshToken, error) {
	buf, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil || len(buf) != refreshBytes {
		return RefreshToken{}, ErrInvalidRefresh
	}
	return RefreshToken{Raw: raw, Hash: hashRefresh(raw)}, nil
}

// RedisKey é a chave do estado do token no Redis.
func (t RefreshToken) RedisKey() string {
	return "painel:refresh:" + t.Hash
}

func hashRefresh(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
