package access

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Requirement lista os níveis exigidos por uma rota ou item de menu.
// Nil significa "sem exigência".
type Requirement []Role

// Require monta uma exigência a partir dos níveis informados.
func Require(levels ...Role) Requirement {
	return Requirement(levels)
}

// Any exige apenas sessão autenticada.
func Any() Requirement {
	return Requirement{RoleAny}
}

// IsAny informa se a exigência aceita qualquer papel autenticado.
func (q Requirement) IsAny() bool {
	if len(q) == 0 {
		return true
	}
	for _, level := range q {
		if level == RoleAny {
			return true
		}
	}
	return false
}

// Allows aplica IsAllowed com os níveis da exigência.
func (q Requirement) Allows(role Role) bool {
	return IsAllowed(role, q...)
}

// UnmarshalYAML aceita tanto um nível único quanto uma lista.
func (q *Requirement) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		return q.set([]string{single})
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		return q.set(many)
	default:
		return fmt.Errorf("access: exigência inválida na linha %d", node.Line)
	}
}

// UnmarshalJSON aceita tanto um nível único quanto uma lista.
func (q *Requirement) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*q = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		return q.set([]string{single})
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("access: exigência inválida: %w", err)
	}
	return q.set(many)
}

func (q *Requirement) set(values []string) error {
	out := make(Requirement, 0, len(values))
	for _, value := range values {
		role, err := ParseRole(value)
		if err != nil {
			return fmt.Errorf("access: %q: %w", value, err)
		}
		out = append(out, role)
	}
	*q = out
	return nil
}
