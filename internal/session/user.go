package session

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/iermgmt/painel/internal/access"
)

// User é o perfil em cache; serve apenas para visibilidade na interface.
type User struct {
	IDNumber   string      `json:"id_number"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	MiddleName string      `json:"middle_name,omitempty"`
	Email      string      `json:"email"`
	Role       access.Role `json:"user_level"`
	Status     string      `json:"status,omitempty"`
	Active     bool        `json:"is_active"`
}

// Bundle é o par de credenciais gravado sempre junto.
type Bundle struct {
	AccessToken  string
	RefreshToken string
}

var errInvalidProfile = errors.New("perfil em cache inválido")

// FullName junta nome e sobrenome.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{u.FirstName, u.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Initials devolve as iniciais em maiúsculas, "U" quando não há nome.
func (u *User) Initials() string {
	if u == nil {
		return "U"
	}
	var b strings.Builder
	for _, p := range []string{u.FirstName, u.LastName} {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		r := []rune(p)
		b.WriteString(strings.ToUpper(string(r[0])))
	}
	if b.Len() == 0 {
		return "U"
	}
	return b.String()
}

func encodeUser(u *User) (string, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeUser(raw string) (*User, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errInvalidProfile
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, errInvalidProfile
	}
	if !validProfile(&u) {
		return nil, errInvalidProfile
	}
	return &u, nil
}

// validProfile exige id_number e um papel conhecido.
func validProfile(u *User) bool {
	return u.IDNumber != "" && u.Role.Valid()
}
