package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logging escreve um log estruturado por requisição. Erros do servidor saem
// em nível error e recusas de autenticação em warn.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		// o Auth roda depois; o subject vem de volta por este ponteiro
		holder := &identity{}
		next.ServeHTTP(ww, r.WithContext(withIdentity(r.Context(), holder)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests:
			event = log.Warn()
		default:
			event = log.Info()
		}

		event = event.Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", status).Int("bytes", ww.BytesWritten()).Dur("duration", time.Since(start)).
			Str("ip", realIPFromRequest(r))

		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			event = event.Str("request_id", reqID)
		}
		if holder.subject != "" {
			event = event.Str("subject", holder.subject).Str("role", holder.role)
		}
		if ua := r.Header.Get("User-Agent"); ua != "" {
			event = event.Str("user_agent", ua)
		}

		event.Msg("http_request")
	})
}
