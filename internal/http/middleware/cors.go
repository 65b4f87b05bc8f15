package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CORS aplica política restrita baseada em ALLOW_ORIGINS.
// Entradas aceitas:
// - Origin exato (ex.: https://painel.example.org)
// - wildcard de subdomínio começando com *. (ex.: *.example.org)
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := newOriginMatcher(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed.match(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type originMatcher struct {
	exact    map[string]struct{}
	suffixes []string // ".dominio", sempre em minúsculas
}

func newOriginMatcher(entries []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{}, len(entries))}
	for _, entry := range entries {
		e := strings.TrimSpace(entry)
		switch {
		case e == "":
		case strings.HasPrefix(e, "*."):
			m.suffixes = append(m.suffixes, strings.ToLower(strings.TrimPrefix(e, "*")))
		default:
			m.exact[strings.TrimSuffix(e, "/")] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) match(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	if len(m.suffixes) == 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suf := range m.suffixes {
		// exige subdomínio: a raiz do sufixo não casa
		if strings.HasSuffix(host, suf) && host != strings.TrimPrefix(suf, ".") {
			return true
		}
	}
	return false
}
