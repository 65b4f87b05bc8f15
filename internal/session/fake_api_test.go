package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iermgmt/painel/internal/access"
	"github.com/iermgmt/painel/internal/credstore"
)

// fakeAPI imita os endpoints de autenticação do servidor.
type fakeAPI struct {
	t *testing.T

	mu       sync.Mutex
	users    map[string]fakeAccount
	access   map[string]string // access token -> id_number
	refresh  map[string]string // refresh token -> id_number
	issued   int
	rotate   bool
	gate     chan struct{}
	srv      *httptest.Server
	logins   atomic.Int32
	refreshs atomic.Int32
	logouts  atomic.Int32
	rejected atomic.Int32
}

type fakeAccount struct {
	password string
	user     User
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{
		t:       t,
		users:   make(map[string]fakeAccount),
		access:  make(map[string]string),
		refresh: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login/", api.handleLogin)
	mux.HandleFunc("/api/user/", api.handleUser)
	mux.HandleFunc("/api/token/refresh/", api.handleRefresh)
	mux.HandleFunc("/api/logout/", api.handleLogout)
	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) addUser(idNumber, password string, role access.Role) User {
	u := User{
		IDNumber:  idNumber,
		FirstName: "Maria",
		LastName:  "Santos",
		Email:     idNumber + "@example.com",
		Role:      role,
		Status:    "active",
		Active:    true,
	}
	a.mu.Lock()
	a.users[idNumber] = fakeAccount{password: password, user: u}
	a.mu.Unlock()
	return u
}

// expireAccess invalida todos os access tokens emitidos.
func (a *fakeAPI) expireAccess() {
	a.mu.Lock()
	a.access = make(map[string]string)
	a.mu.Unlock()
}

// revokeRefresh invalida todos os refresh tokens emitidos.
func (a *fakeAPI) revokeRefresh() {
	a.mu.Lock()
	a.refresh = make(map[string]string)
	a.mu.Unlock()
}

func (a *fakeAPI) issueLocked(idNumber string) (string, string) {
	a.issued++
	acc := fmt.Sprintf("access-%d", a.issued)
	ref := fmt.Sprintf("refresh-%d", a.issued)
	a.access[acc] = idNumber
	a.refresh[ref] = idNumber
	return acc, ref
}

func (a *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	a.logins.Add(1)
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFake(w, http.StatusBadRequest, map[string]string{"detail": "payload inválido"})
		return
	}

	a.mu.Lock()
	acct, ok := a.users[req.IDNumber]
	if !ok || acct.password != req.Password {
		a.mu.Unlock()
		writeFake(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	acc, ref := a.issueLocked(req.IDNumber)
	a.mu.Unlock()

	writeFake(w, http.StatusOK, map[string]any{"access": acc, "refresh": ref, "user": acct.user})
}

func (a *fakeAPI) handleUser(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	a.mu.Lock()
	id, ok := a.access[token]
	acct := a.users[id]
	a.mu.Unlock()
	if !ok {
		a.rejected.Add(1)
		writeFake(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
		return
	}
	writeFake(w, http.StatusOK, map[string]any{"user": acct.user})
}

func (a *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.refreshs.Add(1)
	if a.gate != nil {
		<-a.gate
	}
	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	a.mu.Lock()
	id, ok := a.refresh[req.Refresh]
	if !ok {
		a.mu.Unlock()
		writeFake(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
		return
	}
	a.issued++
	acc := fmt.Sprintf("access-%d", a.issued)
	a.access[acc] = id
	body := map[string]string{"access": acc}
	if a.rotate {
		delete(a.refresh, req.Refresh)
		ref := fmt.Sprintf("refresh-%d", a.issued)
		a.refresh[ref] = id
		body["refresh"] = ref
	}
	a.mu.Unlock()

	writeFake(w, http.StatusOK, body)
}

func (a *fakeAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.logouts.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

func writeFake(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, api *fakeAPI, store credstore.Store) *Client {
	t.Helper()
	client, err := NewClient(store, Options{BaseURL: api.srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func newMuxServer(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

func newStatusServer(t *testing.T, status int) string {
	t.Helper()
	return newMuxServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, status, map[string]string{"detail": http.StatusText(status)})
	}))
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
