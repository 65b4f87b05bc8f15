package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iermgmt/painel/internal/access"
	"github.com/iermgmt/painel/internal/credstore"
)

const (
	// LandingPath é a superfície autenticada padrão.
	LandingPath = "/dashboard"
	// LoginPath é a superfície de login.
	LoginPath = "/"

	defaultLoadingTimeout = 3 * time.Second
	logoutNotifyTimeout   = 5 * time.Second
	storeReadTimeout      = 2 * time.Second
)

// Snapshot é a visão imutável do estado em um instante.
type Snapshot struct {
	User            *User
	IsLoading       bool
	Error           string
	IsAuthenticated bool
	// Version muda a cada mutação do estado.
	Version uint64
}

// Role devolve o papel do usuário ou vazio.
func (s Snapshot) Role() access.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// LoginResult é o retorno de State.Login; o estado nunca devolve erro.
type LoginResult struct {
	OK       bool
	User     *User
	Error    string
	Kind     Kind
	Redirect string
}

// StateOption ajusta o State.
type StateOption func(*State)

// WithLoadingTimeout limita quanto tempo Initialize espera a validação.
func WithLoadingTimeout(d time.Duration) StateOption {
	return func(s *State) {
		if d > 0 {
			s.loadingTimeout = d
		}
	}
}

// WithLogger define o logger do estado.
func WithLogger(logger zerolog.Logger) StateOption {
	return func(s *State) { s.logger = logger }
}

// State mantém usuário, carregamento e erro da sessão, derivados do Store e
// atualizados pelos resultados do Client. Uma instância por aplicação.
type State struct {
	client         *Client
	store          credstore.Store
	logger         zerolog.Logger
	loadingTimeout time.Duration

	mu      sync.Mutex
	user    *User
	loading bool
	errMsg  string
	version uint64
	// epoch invalida validações em andamento após login, logout ou mudança externa
	epoch uint64
	// queue guarda snapshots na ordem das versões; delivering indica que
	// alguém já está entregando a fila
	queue      []Snapshot
	delivering bool

	subsMu   sync.Mutex
	subs     map[int]func(Snapshot)
	nextSub  int

	initOnce    sync.Once
	validated   chan struct{}
	unsubscribe func()
	lifetime    context.Context
	cancel      context.CancelFunc
	pending     sync.WaitGroup
}

// NewState cria o estado em carregamento, sem usuário.
func NewState(client *Client, opts ...StateOption) *State {
	lifetime, cancel := context.WithCancel(context.Background())
	s := &State{
		client:         client,
		store:          client.Store(),
		logger:         zerolog.Nop(),
		loadingTimeout: defaultLoadingTimeout,
		loading:        true,
		subs:           make(map[int]func(Snapshot)),
		validated:      make(chan struct{}),
		lifetime:       lifetime,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	client.expired = s.handleExpired
	return s
}

// Snapshot devolve o estado atual. IsAuthenticated exige usuário e access
// token presente no Store.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.authenticate(&snap)
	return snap
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		User:      s.user,
		IsLoading: s.loading,
		Error:     s.errMsg,
		Version:   s.version,
	}
}

// authenticate preenche IsAuthenticated com uma leitura limitada do Store.
func (s *State) authenticate(snap *Snapshot) {
	if snap.User == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.lifetime, storeReadTimeout)
	defer cancel()
	token, ok, err := s.store.Get(ctx, credstore.KeyAccessToken)
	snap.IsAuthenticated = err == nil && ok && token != ""
}

// Subscribe registra fn para cada mudança de estado.
func (s *State) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// Validated fecha quando a validação iniciada por Initialize termina.
func (s *State) Validated() <-chan struct{} {
	return s.validated
}

// HasAccess aplica a política de acesso ao usuário atual.
func (s *State) HasAccess(required ...access.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return false
	}
	return access.IsAllowed(s.user.Role, required...)
}

// Initialize roda uma única vez no início da aplicação. Com token e perfil
// em cache, exibe o perfil e valida em segundo plano; o carregamento termina
// com a validação ou após o limite configurado, o que vier antes.
func (s *State) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		s.unsubscribe = s.store.OnExternalChange(s.handleExternalChange)

		_, hasAccess, _ := s.store.Get(ctx, credstore.KeyAccessToken)
		rawUser, hasUser, _ := s.store.Get(ctx, credstore.KeyUser)
		_, hasRefresh, _ := s.store.Get(ctx, credstore.KeyRefreshToken)

		var cached *User
		if hasAccess && hasRefresh && hasUser {
			cached, _ = decodeUser(rawUser)
		}
		if cached == nil {
			if hasAccess || hasUser || hasRefresh {
				s.clearStore(ctx)
			}
			s.mutate(func() {
				s.user = nil
				s.loading = false
			})
			close(s.validated)
			return
		}

		var epoch uint64
		s.mutate(func() {
			s.user = cached
			epoch = s.epoch
		})

		done := make(chan struct{})
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			defer close(s.validated)
			defer close(done)
			user, err := s.client.FetchCurrentUser(s.lifetime)
			s.finishValidation(epoch, user, err)
		}()

		timer := time.NewTimer(s.loadingTimeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			s.logger.Debug().Dur("timeout", s.loadingTimeout).Msg("sessão: validação continua em segundo plano")
			s.endLoading()
		case <-ctx.Done():
			s.endLoading()
		}
	})
}

// Login delega ao Client; sucesso popula o usuário e indica o redirecionamento,
// falha apenas registra o erro.
func (s *State) Login(ctx context.Context, idNumber, password string) LoginResult {
	s.mutate(func() { s.errMsg = "" })

	resp, err := s.client.Login(ctx, idNumber, password)
	if err != nil {
		msg, kind := describe(err)
		s.mutate(func() { s.errMsg = msg })
		return LoginResult{Error: msg, Kind: kind}
	}

	user := resp.User
	s.mutate(func() {
		s.epoch++
		s.user = &user
		s.errMsg = ""
		s.loading = false
	})
	return LoginResult{OK: true, User: &user, Redirect: LandingPath}
}

// Logout limpa Store e estado incondicionalmente. O aviso ao servidor é
// feito depois, sem bloquear a transição local.
func (s *State) Logout(ctx context.Context) {
	refresh, _, _ := s.store.Get(ctx, credstore.KeyRefreshToken)
	s.clearStore(ctx)
	s.mutate(func() {
		s.epoch++
		s.user = nil
		s.errMsg = ""
		s.loading = false
	})

	if refresh == "" {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		notifyCtx, cancel := context.WithTimeout(s.lifetime, logoutNotifyTimeout)
		defer cancel()
		s.client.NotifyLogout(notifyCtx, refresh)
	}()
}

// Wait bloqueia até a validação inicial e os avisos de logout terminarem.
func (s *State) Wait() {
	s.pending.Wait()
}

// Close cancela trabalho em segundo plano e a inscrição no Store.
func (s *State) Close() {
	s.cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.pending.Wait()
}

func (s *State) finishValidation(epoch uint64, user *User, err error) {
	stale := false
	if err != nil {
		s.logger.Info().Err(err).Msg("sessão: perfil em cache rejeitado")
	}

	s.mu.Lock()
	stale = s.epoch != epoch
	s.mu.Unlock()
	if stale {
		s.endLoading()
		return
	}

	if err != nil {
		s.clearStore(s.lifetime)
	}
	s.mutate(func() {
		if s.epoch != epoch {
			s.loading = false
			return
		}
		if err != nil {
			s.user = nil
		} else {
			s.user = user
		}
		s.loading = false
	})
}

func (s *State) handleExternalChange(change credstore.Change) {
	switch change.Key {
	case credstore.KeyUser:
		var user *User
		if !change.Deleted {
			user, _ = decodeUser(change.Value)
		}
		s.mutate(func() {
			s.epoch++
			s.user = user
			s.loading = false
		})
	case credstore.KeyAccessToken, credstore.KeyRefreshToken:
		// IsAuthenticated é derivado do Store; só sinaliza a mudança
		s.mutate(func() {})
	}
}

// handleExpired derruba o usuário quando a renovação é recusada.
func (s *State) handleExpired() {
	s.mutate(func() {
		s.epoch++
		s.user = nil
		s.errMsg = defaultMessage(KindSessionExpired)
	})
}

func (s *State) endLoading() {
	s.mutate(func() { s.loading = false })
}

func (s *State) clearStore(ctx context.Context) {
	if err := s.store.Remove(ctx, credstore.SessionKeys...); err != nil {
		s.logger.Warn().Err(err).Msg("sessão: não foi possível limpar credenciais")
	}
}

// mutate aplica fn sob lock, incrementa a versão e enfileira o snapshot.
// Quem encontra a fila parada a entrega; um assinante que muta o estado
// durante a notificação apenas enfileira e a entrega segue em ordem.
func (s *State) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	s.queue = append(s.queue, s.snapshotLocked())
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	s.mu.Unlock()

	s.deliver()
}

func (s *State) deliver() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		snap := s.queue[0]
		s.queue[0] = Snapshot{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.authenticate(&snap)
		for _, sub := range s.subscribers() {
			sub(snap)
		}
	}
}

func (s *State) subscribers() []func(Snapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if sub, ok := s.subs[id]; ok {
			fns = append(fns, sub)
		}
	}
	return fns
}

func describe(err error) (string, Kind) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.UserMessage(), authErr.Kind
	}
	return defaultMessage(KindNetwork), KindNetwork
}
