package util

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

const (
	minPasswordLen = 8
	maxIDNumberLen = 32
)

// ValidateEmail retorna erro para e-mails inválidos ou com nome de exibição.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email obrigatório")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("email inválido")
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len([]rune(password)) < minPasswordLen {
		return fmt.Errorf("senha deve ter pelo menos %d caracteres", minPasswordLen)
	}
	return nil
}

// ValidateIDNumber aceita letras, dígitos, hífen e ponto.
func ValidateIDNumber(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("id_number obrigatório")
	}
	if len(id) > maxIDNumberLen {
		return fmt.Errorf("id_number deve ter no máximo %d caracteres", maxIDNumberLen)
	}
	for _, r := range id {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '.' {
			return errors.New("id_number contém caracteres inválidos")
		}
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(field + " obrigatório")
	}
	return nil
}
