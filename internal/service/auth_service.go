package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/iermgmt/painel/internal/access"
	"github.com/iermgmt/painel/internal/auth"
	"github.com/iermgmt/painel/internal/repo"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
	// ErrNoEligibleRole indica usuário sem nível de acesso reconhecido.
	ErrNoEligibleRole = errors.New("usuário sem nível de acesso válido")
)

type authRepository interface {
	GetUsuarioByIDNumber(ctx context.Context, idNumber string) (repo.Usuario, error)
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RotateRefreshToken(ctx context.Context, oldHash string, next repo.InsertRefreshTokenParams) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthOptions ajusta o AuthService.
type AuthOptions struct {
	RefreshTTL time.Duration
	// Rotate emite um novo refresh token a cada renovação.
	Rotate  bool
	Lockout *LoginLockout
}

// AuthService concentra regras de autenticação e sessões.
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	rotate     bool
	lockout    *LoginLockout
	now        func() time.Time
}

// NewAuthService cria novo serviço.
func NewAuthService(r authRepository, redisClient redisCommander, jwtMgr *auth.JWTManager, opts AuthOptions) *AuthService {
	ttl := opts.RefreshTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AuthService{
		repo:       r,
		redis:      redisClient,
		jwt:        jwtMgr,
		refreshTTL: ttl,
		rotate:     opts.Rotate,
		lockout:    opts.Lockout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// Profile é o perfil devolvido ao cliente.
type Profile struct {
	ID         string  `json:"id"`
	IDNumber   string  `json:"id_number"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	MiddleName *string `json:"middle_name,omitempty"`
	Email      string  `json:"email"`
	Role       string  `json:"user_level"`
	Status     string  `json:"status"`
	Active     bool    `json:"is_active"`
}

func profileFrom(u repo.Usuario) Profile {
	return Profile{
		ID:         u.ID.String(),
		IDNumber:   u.IDNumber,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		MiddleName: u.MiddleName,
		Email:      u.Email,
		Role:       u.Role,
		Status:     u.Status,
		Active:     u.Ativo,
	}
}

// LoginResult representa o retorno do login.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	Subject       uuid.UUID
	Role          access.Role
	Profile       Profile
	RefreshExpiry time.Time
}

// RefreshResult traz o novo access token e, com rotação, o novo refresh.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// Login autentica por número de identificação e senha. Falhas contam para o
// bloqueio por identificação; enquanto bloqueado nem a senha é verificada.
func (s *AuthService) Login(ctx context.Context, idNumber, password string) (*LoginResult, error) {
	idNumber = strings.TrimSpace(idNumber)
	if idNumber == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if s.lockout != nil {
		locked, err := s.lockout.Locked(ctx, idNumber)
		if err != nil {
			log.Warn().Err(err).Msg("login: lockout indisponível")
		}
		if locked {
			return nil, ErrLocked
		}
	}

	user, err := s.repo.GetUsuarioByIDNumber(ctx, idNumber)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			auth.VerifyMissing(password)
			log.Warn().Msg("login: usuário não encontrado")
			return nil, s.fail(ctx, idNumber)
		}
		return nil, err
	}

	ok, err := auth.Verify(password, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verify password failed")
		return nil, s.fail(ctx, idNumber)
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return nil, s.fail(ctx, idNumber)
	}
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}

	role, err := access.ParseRole(user.Role)
	if err != nil || role == access.RoleAny {
		return nil, ErrNoEligibleRole
	}

	token, _, err := s.jwt.GenerateAccessToken(user.ID.String(), user.IDNumber, string(role))
	if err != nil {
		return nil, err
	}

	refresh, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.refreshTTL)
	if _, err := s.repo.InsertRefreshToken(ctx, s.refreshParams(user.ID, refresh.Hash, expires)); err != nil {
		return nil, err
	}
	if err := s.markActive(ctx, refresh, expires); err != nil {
		return nil, err
	}

	if s.lockout != nil {
		if err := s.lockout.Reset(ctx, idNumber); err != nil {
			log.Warn().Err(err).Msg("login: não foi possível zerar lockout")
		}
	}

	profile := profileFrom(user)
	profile.Role = string(role)
	return &LoginResult{
		AccessToken:   token,
		RefreshToken:  refresh.Raw,
		Subject:       user.ID,
		Role:          role,
		Profile:       profile,
		RefreshExpiry: expires,
	}, nil
}

func (s *AuthService) fail(ctx context.Context, idNumber string) error {
	if s.lockout == nil {
		return ErrInvalidCredentials
	}
	locked, err := s.lockout.RecordFailure(ctx, idNumber)
	if err != nil {
		log.Warn().Err(err).Msg("login: lockout indisponível")
	}
	if locked {
		log.Warn().Msg("login: limite de falhas atingido")
	}
	return ErrInvalidCredentials
}

// Refresh troca um refresh token válido por um novo access token.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*RefreshResult, error) {
	presented, err := auth.ParseRefreshToken(rawToken)
	if err != nil {
		return nil, ErrRefreshInvalid
	}

	record, err := s.repo.GetRefreshTokenByHash(ctx, presented.Hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if record.Revogado || s.now().After(record.Expiracao) {
		return nil, ErrRefreshInvalid
	}

	status, err := s.redis.Get(ctx, presented.RedisKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != auth.RefreshActive {
		return nil, ErrRefreshInvalid
	}

	user, err := s.repo.GetUsuarioByID(ctx, record.UsuarioID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}
	role, err := access.ParseRole(user.Role)
	if err != nil || role == access.RoleAny {
		return nil, ErrNoEligibleRole
	}

	token, _, err := s.jwt.GenerateAccessToken(user.ID.String(), user.IDNumber, string(role))
	if err != nil {
		return nil, err
	}
	result := &RefreshResult{AccessToken: token}
	if !s.rotate {
		return result, nil
	}

	next, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.refreshTTL)
	if err := s.repo.RotateRefreshToken(ctx, presented.Hash, s.refreshParams(user.ID, next.Hash, expires)); err != nil {
		return nil, err
	}
	if err := s.redis.Del(ctx, presented.RedisKey()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if err := s.markActive(ctx, next, expires); err != nil {
		return nil, err
	}
	result.RefreshToken = next.Raw
	return result, nil
}

// Logout revoga o refresh token informado; token desconhecido não é erro.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	presented, err := auth.ParseRefreshToken(rawToken)
	if err != nil {
		return nil
	}
	if err := s.repo.RevokeRefreshToken(ctx, presented.Hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err := s.redis.Del(ctx, presented.RedisKey()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Me retorna o perfil do subject autenticado.
func (s *AuthService) Me(ctx context.Context, subject uuid.UUID) (Profile, error) {
	user, err := s.repo.GetUsuarioByID(ctx, subject)
	if err != nil {
		return Profile{}, err
	}
	if !user.Ativo {
		return Profile{}, ErrAccountDisabled
	}
	return profileFrom(user), nil
}

func (s *AuthService) refreshParams(userID uuid.UUID, hash string, expires time.Time) repo.InsertRefreshTokenParams {
	return repo.InsertRefreshTokenParams{
		ID:        uuid.New(),
		UsuarioID: userID,
		TokenHash: hash,
		Expiracao: expires,
		CriadoEm:  s.now(),
	}
}

func (s *AuthService) markActive(ctx context.Context, token auth.RefreshToken, expires time.Time) error {
	return s.redis.Set(ctx, token.RedisKey(), auth.RefreshActive, expires.Sub(s.now())).Err()
}
