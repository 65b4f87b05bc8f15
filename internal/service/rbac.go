package service

import (
	"errors"

	"github.com/iermgmt/painel/internal/access"
)

var (
	// ErrForbidden indica ausência de permissão.
	ErrForbidden = errors.New("acesso negado")
)

// Authorize aplica a política de acesso ao papel presente no token.
func Authorize(role string, required ...access.Role) error {
	parsed, err := access.ParseRole(role)
	if err != nil || parsed == access.RoleAny {
		return ErrForbidden
	}
	if !access.IsAllowed(parsed, required...) {
		return ErrForbidden
	}
	return nil
}
