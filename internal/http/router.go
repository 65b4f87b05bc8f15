package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/iermgmt/painel/internal/access"
	"github.com/iermgmt/painel/internal/auth"
	"github.com/iermgmt/painel/internal/config"
	httpmiddleware "github.com/iermgmt/painel/internal/http/middleware"
	"github.com/iermgmt/painel/internal/obs"
	"github.com/iermgmt/painel/internal/service"
)

type authService interface {
	Login(ctx context.Context, idNumber, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, rawToken string) (*service.RefreshResult, error)
	Logout(ctx context.Context, rawToken string) error
	Me(ctx context.Context, subject uuid.UUID) (service.Profile, error)
	JWT() *auth.JWTManager
}

type userService interface {
	ListUsers(ctx context.Context) ([]service.Profile, error)
	CreateUser(ctx context.Context, in service.CreateUserInput) (service.Profile, error)
}

type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Deps reúne as dependências do roteador.
type Deps struct {
	Auth     authService
	Users    userService
	DB       dbPinger
	Redis    redisPinger
	Registry *prometheus.Registry
}

type Handler struct {
	cfg           *config.Config
	auth          authService
	users         userService
	db            dbPinger
	redis         redisPinger
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	h := &Handler{
		cfg:           cfg,
		auth:          deps.Auth,
		users:         deps.Users,
		db:            deps.DB,
		redis:         deps.Redis,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	if deps.Registry != nil {
		r.Use(obs.NewHTTPMetrics(deps.Registry).Instrument)
	}
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", obs.Handler(deps.Registry))
	}

	r.Route("/api", func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

			public.Post("/login/", h.Login)
			public.Post("/token/refresh/", h.Refresh)
			public.Post("/logout/", h.Logout)
		})

		api.Group(func(private chi.Router) {
			private.Use(httpmiddleware.Auth(h.auth.JWT()))
			private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

			private.Get("/user/", h.Me)

			private.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireRole(access.RoleAdmin))
				admin.Get("/users/", h.ListUsers)
				admin.Post("/users/", h.CreateUser)
			})
		})
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var dbErr, redisErr error
	if h.db != nil {
		dbErr = h.db.Ping(ctx)
	}
	if h.redis != nil {
		redisErr = h.redis.Ping(ctx).Err()
	}

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
