package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração do servidor carregada do ambiente.
type Config struct {
	Port          int
	DBDSN         string
	RedisURL      string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
	JWTSecret     string
	AllowOrigins  []string
	RotateRefresh bool

	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
	Lockout         LockoutConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LockoutConfig controla o bloqueio de login no servidor.
type LockoutConfig struct {
	MaxFailures int
	Window      time.Duration
}

// ClientConfig é a configuração do cliente de sessão (cmd/painel).
type ClientConfig struct {
	APIBaseURL    string
	RedisURL      string
	SessionOrigin string
	HTTPTimeout   time.Duration
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	port, err := strconv.Atoi(getEnv("PORT", "8000"))
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshTTL <= cfg.JWTAccessTTL {
		return nil, errors.New("JWT_REFRESH_TTL deve ser maior que JWT_ACCESS_TTL")
	}

	cfg.AllowOrigins = splitList(getEnv("ALLOW_ORIGINS", ""))
	if cfg.RotateRefresh, err = parseBoolEnv("JWT_ROTATE_REFRESH", false); err != nil {
		return nil, err
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	maxFailures, err := strconv.Atoi(getEnv("LOGIN_MAX_FAILURES", "6"))
	if err != nil || maxFailures <= 0 {
		return nil, errors.New("LOGIN_MAX_FAILURES inválido")
	}
	window, err := parseDurationEnv("LOGIN_LOCKOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.Lockout = LockoutConfig{MaxFailures: maxFailures, Window: window}

	return cfg, nil
}

// LoadClient carrega a configuração do cliente; nada é obrigatório.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	cfg := &ClientConfig{
		APIBaseURL:    strings.TrimSpace(getEnv("API_BASE_URL", "http://127.0.0.1:8000/")),
		RedisURL:      strings.TrimSpace(getEnv("REDIS_URL", "")),
		SessionOrigin: strings.TrimSpace(getEnv("SESSION_ORIGIN", "http://localhost:5173")),
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL inválida")
	}
	timeout, err := parseDurationEnv("HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, errors.New("HTTP_TIMEOUT deve ser positivo")
	}
	cfg.HTTPTimeout = timeout
	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s inválido", key)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
