package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory implementa as mesmas consultas de Queries em memória, para testes
// dos serviços e handlers.
type Memory struct {
	mu       sync.Mutex
	usuarios map[uuid.UUID]Usuario
	tokens   map[string]TokenRefresh
}

// NewMemory cria repositório vazio.
func NewMemory() *Memory {
	return &Memory{
		usuarios: make(map[uuid.UUID]Usuario),
		tokens:   make(map[string]TokenRefresh),
	}
}

// Put grava o usuário como está, substituindo o de mesmo ID.
func (m *Memory) Put(u Usuario) Usuario {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CriadoEm.IsZero() {
		u.CriadoEm = time.Now().UTC()
	}
	m.usuarios[u.ID] = u
	return u
}

func (m *Memory) GetUsuarioByIDNumber(_ context.Context, idNumber string) (Usuario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usuarios {
		if u.IDNumber == idNumber {
			return u, nil
		}
	}
	return Usuario{}, ErrNotFound
}

func (m *Memory) GetUsuarioByID(_ context.Context, id uuid.UUID) (Usuario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usuarios[id]
	if !ok {
		return Usuario{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) ListUsuarios(context.Context) ([]Usuario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Usuario, 0, len(m.usuarios))
	for _, u := range m.usuarios {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

func (m *Memory) CreateUsuario(_ context.Context, arg CreateUsuarioParams) (Usuario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usuarios {
		if u.IDNumber == arg.IDNumber || strings.EqualFold(u.Email, arg.Email) {
			return Usuario{}, ErrConflict
		}
	}
	u := Usuario{
		ID:         uuid.New(),
		IDNumber:   arg.IDNumber,
		FirstName:  arg.FirstName,
		LastName:   arg.LastName,
		MiddleName: arg.MiddleName,
		Email:      arg.Email,
		SenhaHash:  arg.SenhaHash,
		Role:       arg.Role,
		Status:     "active",
		Ativo:      true,
		CriadoEm:   time.Now().UTC(),
	}
	m.usuarios[u.ID] = u
	return u, nil
}

func (m *Memory) InsertRefreshToken(_ context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(arg)
}

func (m *Memory) insertLocked(arg InsertRefreshTokenParams) (TokenRefresh, error) {
	if _, ok := m.tokens[arg.TokenHash]; ok {
		return TokenRefresh{}, ErrConflict
	}
	t := TokenRefresh{
		ID:        arg.ID,
		UsuarioID: arg.UsuarioID,
		TokenHash: arg.TokenHash,
		Expiracao: arg.Expiracao,
		CriadoEm:  arg.CriadoEm,
	}
	m.tokens[arg.TokenHash] = t
	return t, nil
}

func (m *Memory) GetRefreshTokenByHash(_ context.Context, tokenHash string) (TokenRefresh, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenHash]
	if !ok {
		return TokenRefresh{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revokeLocked(tokenHash)
}

func (m *Memory) revokeLocked(tokenHash string) error {
	t, ok := m.tokens[tokenHash]
	if !ok {
		return ErrNotFound
	}
	t.Revogado = true
	m.tokens[tokenHash] = t
	return nil
}

func (m *Memory) RotateRefreshToken(_ context.Context, oldHash string, next InsertRefreshTokenParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[oldHash]; !ok {
		return ErrNotFound
	}
	if _, ok := m.tokens[next.TokenHash]; ok {
		return ErrConflict
	}
	if err := m.revokeLocked(oldHash); err != nil {
		return err
	}
	_, err := m.insertLocked(next)
	return err
}
