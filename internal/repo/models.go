package repo

import (
	"time"

	"github.com/google/uuid"
)

// Usuario representa colaborador com acesso ao painel.
type Usuario struct {
	ID         uuid.UUID
	IDNumber   string
	FirstName  string
	LastName   string
	MiddleName *string
	Email      string
	SenhaHash  string
	Role       string
	Status     string
	Ativo      bool
	CriadoEm   time.Time
}

// TokenRefresh modela tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID
	UsuarioID uuid.UUID
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
	Revogado  bool
}

// InsertRefreshTokenParams agrupa os campos de um novo refresh token.
type InsertRefreshTokenParams struct {
	ID        uuid.UUID
	UsuarioID uuid.UUID
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
}

// CreateUsuarioParams agrupa os campos de um novo usuário.
type CreateUsuarioParams struct {
	IDNumber   string
	FirstName  string
	LastName   string
	MiddleName *string
	Email      string
	SenhaHash  string
	Role       string
}
