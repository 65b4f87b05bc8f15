package session

import (
	"fmt"
	"time"
)

// Kind classifica falhas de autenticação vistas pelo cliente.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindNetwork            Kind = "network"
	KindSessionExpired     Kind = "session_expired"
	KindLocked             Kind = "locked"
)

// AuthError é a falha tipada devolvida pelo Client.
type AuthError struct {
	Kind    Kind
	Message string
	// Until informa o fim do bloqueio quando Kind == KindLocked.
	Until time.Time
	Err   error
}

// Sentinelas para errors.Is; comparam apenas Kind.
var (
	ErrInvalidCredentials = &AuthError{Kind: KindInvalidCredentials}
	ErrNetwork            = &AuthError{Kind: KindNetwork}
	ErrSessionExpired     = &AuthError{Kind: KindSessionExpired}
	ErrLocked             = &AuthError{Kind: KindLocked}
)

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessage(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is faz qualquer AuthError casar com a sentinela do mesmo Kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage devolve o texto exibível ao usuário.
func (e *AuthError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return defaultMessage(e.Kind)
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindInvalidCredentials:
		return "credenciais inválidas"
	case KindNetwork:
		return "falha de comunicação, tente novamente"
	case KindSessionExpired:
		return "sessão expirada, entre novamente"
	case KindLocked:
		return "muitas tentativas de login, aguarde para tentar novamente"
	default:
		return "falha de autenticação"
	}
}

// APIError representa resposta HTTP de erro fora da taxonomia de sessão.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Detail)
}

func networkError(err error) *AuthError {
	return &AuthError{Kind: KindNetwork, Err: err}
}
