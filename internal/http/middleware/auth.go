package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/iermgmt/painel/internal/access"
	"github.com/iermgmt/painel/internal/auth"
	"github.com/iermgmt/painel/internal/service"
)

type contextKey string

const (
	ContextKeySubject  contextKey = "subject"
	ContextKeyRole     contextKey = "role"
	ContextKeyIDNumber contextKey = "id_number"

	contextKeyIdentity contextKey = "identity"
)

// identity é preenchida pelo Auth para o log da requisição.
type identity struct {
	subject string
	role    string
}

func withIdentity(ctx context.Context, holder *identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, holder)
}

// Auth valida JWT de acesso e injeta claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(strings.TrimSpace(parts[1]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			if holder, ok := r.Context().Value(contextKeyIdentity).(*identity); ok {
				holder.subject = claims.Subject
				holder.role = claims.Role
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
			ctx = context.WithValue(ctx, ContextKeyIDNumber, claims.IDNumber)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetRole recupera o nível de acesso do contexto.
func GetRole(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyRole).(string)
	return val
}

// GetIDNumber recupera o número de identificação do contexto.
func GetIDNumber(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyIDNumber).(string)
	return val
}

// RequireRole aplica a hierarquia de acesso ao papel do token.
func RequireRole(required ...access.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := service.Authorize(GetRole(r.Context()), required...); err != nil {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"detail": detail,
		"code":   code,
	})
}
