package access

import (
	"errors"
	"strings"
)

// Role identifica o nível de acesso de um usuário.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleInspector Role = "inspector"
	// RoleAny é o sentinela "autenticado, papel irrelevante".
	RoleAny Role = "any"
)

// ErrUnknownRole indica papel fora da hierarquia.
var ErrUnknownRole = errors.New("papel desconhecido")

// hierarchy mapeia cada nível exigido para os papéis que o satisfazem.
// admin ⊆ manager ⊆ inspector.
var hierarchy = map[Role][]Role{
	RoleAdmin:     {RoleAdmin},
	RoleManager:   {RoleAdmin, RoleManager},
	RoleInspector: {RoleAdmin, RoleManager, RoleInspector},
	RoleAny:       {},
}

// Roles devolve os papéis concretos em ordem decrescente de privilégio.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleInspector}
}

// Valid informa se o papel é um dos três papéis concretos.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleInspector:
		return true
	}
	return false
}

// ParseRole normaliza e valida um papel (aceita também "any").
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := hierarchy[role]; !ok {
		return "", ErrUnknownRole
	}
	return role, nil
}

// AllowedSet devolve uma cópia dos papéis que satisfazem o nível.
func AllowedSet(level Role) []Role {
	set := hierarchy[level]
	out := make([]Role, len(set))
	copy(out, set)
	return out
}

// IsAllowed decide se userRole satisfaz algum dos níveis exigidos.
//
// Papel vazio nunca é permitido. Sem exigência, ou com RoleAny entre os
// níveis, basta o papel não ser vazio. Caso contrário o papel precisa
// pertencer à união dos conjuntos da hierarquia.
func IsAllowed(userRole Role, required ...Role) bool {
	if userRole == "" {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, level := range required {
		if level == RoleAny {
			return true
		}
		for _, allowed := range hierarchy[level] {
			if allowed == userRole {
				return true
			}
		}
	}
	return false
}
