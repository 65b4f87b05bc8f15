// Package guard decide se uma superfície protegida pode ser exibida para a
// sessão atual.
package guard

import (
	"context"
	"sync"

	"github.com/iermgmt/painel/internal/access"
	"github.com/iermgmt/painel/internal/session"
)

// Decision é o estado do guard.
type Decision int

const (
	Pending Decision = iota
	Allowed
	RedirectLogin
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allowed:
		return "allowed"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Outcome é a decisão e, para redirecionamentos, o destino.
type Outcome struct {
	Decision Decision
	Target   string
}

// Redirect informa se o resultado exige navegação.
func (o Outcome) Redirect() bool {
	return o.Decision == RedirectLogin || o.Decision == RedirectUnauthorized
}

// Option ajusta o Guard.
type Option func(*Guard)

// WithLoginPath define o destino de RedirectLogin.
func WithLoginPath(path string) Option {
	return func(g *Guard) { g.loginPath = path }
}

// WithLandingPath define o destino de RedirectUnauthorized.
func WithLandingPath(path string) Option {
	return func(g *Guard) { g.landingPath = path }
}

// Guard avalia snapshots da sessão contra um requisito de papel.
type Guard struct {
	required    access.Requirement
	loginPath   string
	landingPath string

	mu          sync.Mutex
	evaluated   bool
	lastVersion uint64
	last        Outcome
	allowedID   string
	allowedRole access.Role
}

// New cria um guard para o requisito informado; requisito vazio equivale a
// qualquer usuário autenticado.
func New(required access.Requirement, opts ...Option) *Guard {
	g := &Guard{
		required:    required,
		loginPath:   session.LoginPath,
		landingPath: session.LandingPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Required devolve o requisito do guard.
func (g *Guard) Required() access.Requirement {
	return g.required
}

// Evaluate devolve a decisão para snap. Snapshots de versão já vista (ou
// anterior) não são reavaliados, e um Allowed se mantém enquanto o mesmo
// usuário revalida.
func (g *Guard) Evaluate(snap session.Snapshot) Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.evaluated && snap.Version <= g.lastVersion {
		return g.last
	}

	out := g.decide(snap)
	g.evaluated = true
	g.lastVersion = snap.Version
	g.last = out
	if out.Decision == Allowed && snap.User != nil {
		g.allowedID = snap.User.IDNumber
		g.allowedRole = snap.User.Role
	} else if out.Decision != Allowed {
		g.allowedID, g.allowedRole = "", ""
	}
	return out
}

func (g *Guard) decide(snap session.Snapshot) Outcome {
	if snap.IsLoading {
		if g.last.Decision == Allowed && snap.User != nil &&
			snap.User.IDNumber == g.allowedID && snap.User.Role == g.allowedRole {
			return g.last
		}
		return Outcome{Decision: Pending}
	}
	if snap.User == nil || !snap.IsAuthenticated {
		return Outcome{Decision: RedirectLogin, Target: g.loginPath}
	}
	if !g.required.IsAny() && !g.required.Allows(snap.User.Role) {
		return Outcome{Decision: RedirectUnauthorized, Target: g.landingPath}
	}
	return Outcome{Decision: Allowed}
}

// Source é a fonte de snapshots observada por um guard montado.
type Source interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (cancel func())
}

// Navigator substitui a entrada atual do histórico.
type Navigator interface {
	Replace(path string)
}

// Mounted é um guard ligado a uma superfície viva.
type Mounted struct {
	guard    *Guard
	nav      Navigator
	onChange func(Outcome)

	applyMu sync.Mutex
	mu      sync.Mutex
	alive   bool
	current Outcome
	applied bool
	cancel  func()
	stop    context.CancelFunc
}

// Mount avalia o snapshot atual e passa a reagir às mudanças de src.
// Redirecionamentos usam Replace. Nada é aplicado depois que ctx é
// cancelado ou Unmount é chamado.
func (g *Guard) Mount(ctx context.Context, src Source, nav Navigator, onChange func(Outcome)) *Mounted {
	ctx, stop := context.WithCancel(ctx)
	m := &Mounted{guard: g, nav: nav, onChange: onChange, alive: true, stop: stop}

	cancel := src.Subscribe(m.apply)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	m.apply(src.Snapshot())

	go func() {
		<-ctx.Done()
		m.Unmount()
	}()
	return m
}

// Outcome devolve a última decisão aplicada.
func (m *Mounted) Outcome() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Unmount desliga o guard; chamadas repetidas são inofensivas.
func (m *Mounted) Unmount() {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	m.alive = false
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.stop()
}

func (m *Mounted) apply(snap session.Snapshot) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	out := m.guard.Evaluate(snap)

	m.mu.Lock()
	if !m.alive || (m.applied && out == m.current) {
		m.mu.Unlock()
		return
	}
	m.applied = true
	m.current = out
	m.mu.Unlock()

	if out.Redirect() && m.nav != nil {
		m.nav.Replace(out.Target)
	}
	if m.onChange != nil {
		m.onChange(out)
	}
}
