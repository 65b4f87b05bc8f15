package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iermgmt/painel/internal/access"
	"github.com/iermgmt/painel/internal/auth"
	"github.com/iermgmt/painel/internal/repo"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "senha-forte-1"
)

type authFixture struct {
	svc   *AuthService
	repo  *repo.Memory
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	jwt   *auth.JWTManager
	admin repo.Usuario
}

func newAuthFixture(t *testing.T, rotate bool) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	t.Cleanup(func() { _ = rdb.Close() })

	hash, err := auth.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	memory := repo.NewMemory()
	admin := memory.Put(repo.Usuario{IDNumber: "A-1", FirstName: "Ana", LastName: "Souza", Email: "ana@painel.local", SenhaHash: hash, Role: "admin", Status: "active", Ativo: true})
	memory.Put(repo.Usuario{IDNumber: "D-1", FirstName: "Davi", LastName: "Reis", SenhaHash: hash, Role: "manager", Ativo: false})
	memory.Put(repo.Usuario{IDNumber: "R-1", FirstName: "Rui", LastName: "Melo", SenhaHash: hash, Role: "root", Ativo: true})

	jwtMgr := auth.NewJWTManager(testSecret, time.Minute)
	svc := NewAuthService(memory, rdb, jwtMgr, AuthOptions{
		RefreshTTL: time.Hour,
		Rotate:     rotate,
		Lockout:    NewLoginLockout(rdb, 6, 5*time.Minute),
	})
	return &authFixture{svc: svc, repo: memory, mr: mr, rdb: rdb, jwt: jwtMgr, admin: admin}
}

func TestLoginIssuesTokens(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, " A-1 ", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Role != access.RoleAdmin || res.Profile.Role != "admin" || res.Subject != f.admin.ID {
		t.Fatalf("unexpected result %+v", res)
	}

	claims, err := f.jwt.ParseAndValidate(res.AccessToken)
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if claims.Subject != f.admin.ID.String() || claims.Role != "admin" || claims.IDNumber != "A-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	refresh, err := auth.ParseRefreshToken(res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh format: %v", err)
	}
	if status, err := f.mr.Get(refresh.RedisKey()); err != nil || status != auth.RefreshActive {
		t.Fatalf("refresh not marked active: %q %v", status, err)
	}
	if _, err := f.repo.GetRefreshTokenByHash(ctx, refresh.Hash); err != nil {
		t.Fatalf("refresh not persisted: %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	cases := []struct {
		name     string
		idNumber string
		password string
		want     error
	}{
		{"wrong password", "A-1", "errada", ErrInvalidCredentials},
		{"unknown user", "Z-9", testPassword, ErrInvalidCredentials},
		{"empty id", "  ", testPassword, ErrInvalidCredentials},
		{"disabled", "D-1", testPassword, ErrAccountDisabled},
		{"unknown role", "R-1", testPassword, ErrNoEligibleRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Login(ctx, tc.idNumber, tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoginLockout(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := f.svc.Login(ctx, "A-1", "errada"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if _, err := f.svc.Login(ctx, "a-1", testPassword); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected lock regardless of case, got %v", err)
	}

	f.mr.FastForward(5*time.Minute + time.Second)
	if _, err := f.svc.Login(ctx, "A-1", testPassword); err != nil {
		t.Fatalf("login after window: %v", err)
	}
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "A-1", "errada")
	}
	if _, err := f.svc.Login(ctx, "A-1", testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	if f.mr.Exists("painel:login_fail:a-1") {
		t.Fatal("failure counter must be cleared after success")
	}
	if _, err := f.svc.Login(ctx, "A-1", "errada"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected a fresh counter, got %v", err)
	}
}

func TestRefreshIssuesAccessOnly(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	login, err := f.svc.Login(ctx, "A-1", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	res, err := f.svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken != "" {
		t.Fatalf("unexpected refresh result %+v", res)
	}
	// sem rotação o mesmo refresh continua válido
	if _, err := f.svc.Refresh(ctx, login.RefreshToken); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
}

func TestRefreshRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown", func(t *testing.T) {
		f := newAuthFixture(t, false)
		if _, err := f.svc.Refresh(ctx, "desconhecido"); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("expected invalid, got %v", err)
		}
		if _, err := f.svc.Refresh(ctx, ""); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("expected invalid for empty token, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		f := newAuthFixture(t, false)
		login, _ := f.svc.Login(ctx, "A-1", testPassword)
		later := time.Now().UTC().Add(2 * time.Hour)
		f.svc.now = func() time.Time { return later }
		if _, err := f.svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("expected invalid, got %v", err)
		}
	})

	t.Run("missing in redis", func(t *testing.T) {
		f := newAuthFixture(t, false)
		login, _ := f.svc.Login(ctx, "A-1", testPassword)
		presented, _ := auth.ParseRefreshToken(login.RefreshToken)
		f.mr.Del(presented.RedisKey())
		if _, err := f.svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("expected invalid, got %v", err)
		}
	})

	t.Run("after logout", func(t *testing.T) {
		f := newAuthFixture(t, false)
		login, _ := f.svc.Login(ctx, "A-1", testPassword)
		if err := f.svc.Logout(ctx, login.RefreshToken); err != nil {
			t.Fatalf("logout: %v", err)
		}
		if _, err := f.svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("expected invalid, got %v", err)
		}
	})

	t.Run("user disabled", func(t *testing.T) {
		f := newAuthFixture(t, false)
		login, _ := f.svc.Login(ctx, "A-1", testPassword)
		disabled := f.admin
		disabled.Ativo = false
		f.repo.Put(disabled)
		if _, err := f.svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrAccountDisabled) {
			t.Fatalf("expected disabled, got %v", err)
		}
	})
}

func TestRefreshRotation(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()
	login, _ := f.svc.Login(ctx, "A-1", testPassword)

	res, err := f.svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if res.RefreshToken == "" || res.RefreshToken == login.RefreshToken {
		t.Fatalf("expected rotated refresh, got %+v", res)
	}
	if old, _ := auth.ParseRefreshToken(login.RefreshToken); f.mr.Exists(old.RedisKey()) {
		t.Fatal("old refresh must leave redis")
	}
	if _, err := f.svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("old refresh must be rejected, got %v", err)
	}
	if _, err := f.svc.Refresh(ctx, res.RefreshToken); err != nil {
		t.Fatalf("new refresh: %v", err)
	}
}

func TestLogoutUnknownTokenIsNotError(t *testing.T) {
	f := newAuthFixture(t, false)
	if err := f.svc.Logout(context.Background(), "desconhecido"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := f.svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("logout empty: %v", err)
	}
}

func TestMe(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	profile, err := f.svc.Me(ctx, f.admin.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if profile.IDNumber != "A-1" || profile.Role != "admin" || !profile.Active {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if _, err := f.svc.Me(ctx, uuid.New()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	cases := []struct {
		role     string
		required []access.Role
		ok       bool
	}{
		{"admin", []access.Role{access.RoleAdmin}, true},
		{"manager", []access.Role{access.RoleAdmin}, false},
		{"manager", []access.Role{access.RoleAdmin, access.RoleInspector}, true},
		{"inspector", []access.Role{access.RoleAny}, true},
		{"", nil, false},
		{"any", nil, false},
		{"root", []access.Role{access.RoleInspector}, false},
	}
	for _, tc := range cases {
		err := Authorize(tc.role, tc.required...)
		if (err == nil) != tc.ok {
			t.Fatalf("Authorize(%q, %v) = %v", tc.role, tc.required, err)
		}
		if err != nil && !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	}
}
