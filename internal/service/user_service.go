package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iermgmt/painel/internal/access"
	"github.com/iermgmt/painel/internal/auth"
	"github.com/iermgmt/painel/internal/repo"
	"github.com/iermgmt/painel/internal/util"
)

// ErrValidation embrulha falhas de validação de entrada.
var ErrValidation = errors.New("dados inválidos")

type userRepository interface {
	ListUsuarios(ctx context.Context) ([]repo.Usuario, error)
	CreateUsuario(ctx context.Context, arg repo.CreateUsuarioParams) (repo.Usuario, error)
}

// UserService centraliza casos de uso de administração de usuários.
type UserService struct {
	repo userRepository
}

// NewUserService cria nova instância do serviço.
func NewUserService(r userRepository) *UserService {
	return &UserService{repo: r}
}

// CreateUserInput descreve um novo usuário.
type CreateUserInput struct {
	IDNumber   string  `json:"id_number"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	MiddleName *string `json:"middle_name,omitempty"`
	Email      string  `json:"email"`
	Role       string  `json:"user_level"`
	Password   string  `json:"password"`
}

// ListUsers retorna os usuários cadastrados.
func (s *UserService) ListUsers(ctx context.Context) ([]Profile, error) {
	users, err := s.repo.ListUsuarios(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(users))
	for _, u := range users {
		out = append(out, profileFrom(u))
	}
	return out, nil
}

// CreateUser valida a entrada, gera o hash da senha e persiste o usuário.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (Profile, error) {
	if err := util.ValidateIDNumber(in.IDNumber); err != nil {
		return Profile{}, errors.Join(ErrValidation, err)
	}
	for field, value := range map[string]string{"first_name": in.FirstName, "last_name": in.LastName} {
		if err := util.RequireString(value, field); err != nil {
			return Profile{}, errors.Join(ErrValidation, err)
		}
	}
	if err := util.ValidateEmail(in.Email); err != nil {
		return Profile{}, errors.Join(ErrValidation, err)
	}
	password := strings.TrimSpace(in.Password)
	if err := util.ValidatePassword(password); err != nil {
		return Profile{}, errors.Join(ErrValidation, err)
	}
	role, err := access.ParseRole(in.Role)
	if err != nil || role == access.RoleAny {
		return Profile{}, errors.Join(ErrValidation, errors.New("nível de acesso inválido"))
	}

	hash, err := auth.Hash(password)
	if err != nil {
		return Profile{}, err
	}

	user, err := s.repo.CreateUsuario(ctx, repo.CreateUsuarioParams{
		IDNumber:   strings.TrimSpace(in.IDNumber),
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		MiddleName: in.MiddleName,
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		SenhaHash:  hash,
		Role:       string(role),
	})
	if err != nil {
		return Profile{}, err
	}
	return profileFrom(user), nil
}
