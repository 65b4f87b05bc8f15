package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/iermgmt/painel/internal/credstore"
)

const (
	loginPath   = "api/login/"
	userPath    = "api/user/"
	refreshPath = "api/token/refresh/"
	logoutPath  = "api/logout/"

	defaultBaseURL = "http://127.0.0.1:8000/"
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// Recorder recebe contadores de login e renovação.
type Recorder interface {
	Login(outcome string)
	Refresh(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Login(string)   {}
func (nopRecorder) Refresh(string) {}

// Options configura o Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout vale quando HTTPClient não é informado.
	Timeout  time.Duration
	Lockout  LockoutPolicy
	Throttle *Throttle
	Metrics  Recorder
	Logger   *zerolog.Logger
}

// Client executa a troca de credenciais, busca o usuário autenticado e
// renova o access token de forma transparente.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      credstore.Store
	throttle   *Throttle
	metrics    Recorder
	logger     zerolog.Logger
	flight     singleflight.Group
	// expired é chamado quando o servidor recusa o refresh token
	expired func()
}

// LoginRequest é o corpo enviado ao endpoint de login.
type LoginRequest struct {
	IDNumber string `json:"id_number"`
	Password string `json:"password"`
}

// LoginResponse é o retorno do login.
type LoginResponse struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	User         User   `json:"user"`
}

// NewClient cria o cliente sobre o Store informado.
func NewClient(store credstore.Store, opts Options) (*Client, error) {
	if store == nil {
		return nil, errors.New("session: store obrigatório")
	}

	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "session").Logger()

	throttle := opts.Throttle
	if throttle == nil {
		throttle = NewThrottle(store, opts.Lockout, logger)
	}

	var metrics Recorder = nopRecorder{}
	if opts.Metrics != nil {
		metrics = opts.Metrics
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		store:      store,
		throttle:   throttle,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Store expõe o armazenamento de credenciais usado pelo cliente.
func (c *Client) Store() credstore.Store {
	return c.store
}

// Login troca idNumber/senha por credenciais e grava bundle e perfil juntos.
// Enquanto o bloqueio local estiver ativo nenhuma requisição é feita.
func (c *Client) Login(ctx context.Context, idNumber, password string) (*LoginResponse, error) {
	if err := c.throttle.Check(ctx); err != nil {
		c.metrics.Login("locked")
		return nil, err
	}

	res, err := c.send(ctx, http.MethodPost, loginPath, "", LoginRequest{IDNumber: idNumber, Password: password})
	if err != nil {
		c.metrics.Login("network")
		return nil, err
	}

	switch {
	case res.status == http.StatusTooManyRequests:
		c.metrics.Login("locked")
		return nil, &AuthError{Kind: KindLocked, Message: res.detail()}
	case res.status >= 500:
		c.metrics.Login("network")
		return nil, &AuthError{Kind: KindNetwork, Err: fmt.Errorf("login: status %d", res.status)}
	case res.status >= 400:
		locked := c.throttle.RecordFailure(ctx)
		c.metrics.Login("invalid_credentials")
		c.logger.Warn().Int("status", res.status).Bool("locked", locked).Msg("login recusado")
		return nil, &AuthError{Kind: KindInvalidCredentials, Message: res.detail()}
	}

	var out LoginResponse
	if err := json.Unmarshal(res.body, &out); err != nil {
		c.metrics.Login("network")
		return nil, networkError(fmt.Errorf("login: resposta inválida: %w", err))
	}
	if out.AccessToken == "" || out.RefreshToken == "" || !validProfile(&out.User) {
		c.metrics.Login("network")
		return nil, &AuthError{Kind: KindNetwork, Message: "resposta inválida do servidor"}
	}

	profile, err := encodeUser(&out.User)
	if err != nil {
		return nil, networkError(err)
	}
	if err := c.store.SetMany(ctx, map[string]string{
		credstore.KeyAccessToken:  out.AccessToken,
		credstore.KeyRefreshToken: out.RefreshToken,
		credstore.KeyUser:         profile,
	}); err != nil {
		return nil, fmt.Errorf("session: gravar credenciais: %w", err)
	}

	c.throttle.Reset(ctx)
	c.metrics.Login("success")
	c.logger.Info().Str("role", string(out.User.Role)).Msg("login efetuado")
	return &out, nil
}

// FetchCurrentUser valida o access token em cache e atualiza o perfil.
func (c *Client) FetchCurrentUser(ctx context.Context) (*User, error) {
	if _, ok, err := c.store.Get(ctx, credstore.KeyAccessToken); err != nil || !ok {
		if err == nil {
			err = errors.New("access token ausente")
		}
		return nil, &AuthError{Kind: KindSessionExpired, Err: err}
	}

	var payload struct {
		User User `json:"user"`
	}
	if err := c.Do(ctx, http.MethodGet, userPath, nil, &payload); err != nil {
		return nil, err
	}
	if !validProfile(&payload.User) {
		return nil, &AuthError{Kind: KindNetwork, Message: "resposta inválida do servidor"}
	}

	profile, err := encodeUser(&payload.User)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, credstore.KeyUser, profile); err != nil {
		return nil, fmt.Errorf("session: gravar perfil: %w", err)
	}
	return &payload.User, nil
}

// Do executa uma requisição autenticada com corpo e resposta JSON. Um 401
// dispara no máximo uma renovação e uma reemissão da mesma requisição.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	token, _, err := c.store.Get(ctx, credstore.KeyAccessToken)
	if err != nil {
		return fmt.Errorf("session: ler access token: %w", err)
	}

	res, err := c.send(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	if res.status == http.StatusUnauthorized {
		fresh, rerr := c.renew(ctx, token)
		if rerr != nil {
			if errors.Is(rerr, errNoRefreshToken) {
				return res.apiError()
			}
			return rerr
		}
		// reemissão marcada: um novo 401 é propagado sem outra renovação
		res, err = c.send(ctx, method, path, fresh, body)
		if err != nil {
			return err
		}
	}

	if res.status >= 400 {
		return res.apiError()
	}
	if out == nil || len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("session: decodificar resposta: %w", err)
	}
	return nil
}

// NotifyLogout avisa o servidor do logout; falhas são apenas registradas.
func (c *Client) NotifyLogout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	res, err := c.send(ctx, http.MethodPost, logoutPath, "", map[string]string{"refresh": refreshToken})
	if err != nil {
		c.logger.Debug().Err(err).Msg("logout: servidor indisponível")
		return
	}
	if res.status >= 400 {
		c.logger.Debug().Int("status", res.status).Msg("logout: servidor recusou")
	}
}

type response struct {
	status int
	body   []byte
}

func (r *response) detail() string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.body, &payload); err != nil {
		return ""
	}
	if payload.Detail != "" {
		return payload.Detail
	}
	return payload.Message
}

func (r *response) apiError() *APIError {
	return &APIError{Status: r.status, Detail: r.detail()}
}

func (c *Client) send(ctx context.Context, method, path, token string, body any) (*response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+strings.TrimPrefix(path, "/"), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, networkError(err)
	}
	return &response{status: resp.StatusCode, body: data}, nil
}
