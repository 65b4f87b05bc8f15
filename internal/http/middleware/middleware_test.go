package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iermgmt/painel/internal/access"
	"github.com/iermgmt/painel/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthInjectsClaims(t *testing.T) {
	jwtMgr := auth.NewJWTManager(testSecret, time.Minute)
	token, _, err := jwtMgr.GenerateAccessToken("sub-1", "A-1", "manager")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	var subject, role, idNumber string
	h := Auth(jwtMgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = GetSubject(r.Context())
		role = GetRole(r.Context())
		idNumber = GetIDNumber(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if subject != "sub-1" || role != "manager" || idNumber != "A-1" {
		t.Fatalf("unexpected claims %q %q %q", subject, role, idNumber)
	}
}

func TestAuthRejects(t *testing.T) {
	jwtMgr := auth.NewJWTManager(testSecret, time.Minute)
	expired, _, _ := auth.NewJWTManager(testSecret, -time.Minute).GenerateAccessToken("s", "A-1", "admin")
	other, _, _ := auth.NewJWTManager("ffffffffffffffffffffffffffffffff", time.Minute).GenerateAccessToken("s", "A-1", "admin")

	for name, header := range map[string]string{
		"missing":      "",
		"basic":        "Basic abc",
		"empty bearer": "Bearer ",
		"expired":      "Bearer " + expired,
		"wrong secret": "Bearer " + other,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			Auth(jwtMgr)(okHandler()).ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireRoleHierarchy(t *testing.T) {
	jwtMgr := auth.NewJWTManager(testSecret, time.Minute)
	cases := []struct {
		role     string
		required []access.Role
		want     int
	}{
		{"admin", []access.Role{access.RoleAdmin}, http.StatusOK},
		{"manager", []access.Role{access.RoleAdmin}, http.StatusForbidden},
		{"manager", []access.Role{access.RoleInspector}, http.StatusOK},
		{"inspector", []access.Role{access.RoleManager}, http.StatusForbidden},
		{"inspector", nil, http.StatusOK},
		{"root", nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		token, _, _ := jwtMgr.GenerateAccessToken("s", "X", tc.role)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		Auth(jwtMgr)(RequireRole(tc.required...)(okHandler())).ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("role %s required %v: expected %d, got %d", tc.role, tc.required, tc.want, rec.Code)
		}
	}
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	lim := NewRateLimiter(1, 2)
	lim.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := lim.Allow("ip"); !ok {
			t.Fatalf("request %d must pass", i+1)
		}
	}
	ok, wait := lim.Allow("ip")
	if ok || wait <= 0 {
		t.Fatalf("expected rejection with wait, got %v %v", ok, wait)
	}
	if ok, _ := lim.Allow("other"); !ok {
		t.Fatal("keys must be independent")
	}

	now = now.Add(time.Second)
	if ok, _ := lim.Allow("ip"); !ok {
		t.Fatal("token must refill after a second")
	}
}

func TestRateLimitResponse(t *testing.T) {
	lim := NewRateLimiter(0.001, 1)
	h := IPRateLimit(lim)(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/login/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i+1, want, rec.Code)
		}
		if want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Fatal("missing Retry-After")
		}
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := realIPFromRequest(req); got != "10.0.0.1" {
		t.Fatalf("remote addr: %s", got)
	}
	req.Header.Set("X-Forwarded-For", " 1.1.1.1 , 2.2.2.2")
	if got := realIPFromRequest(req); got != "1.1.1.1" {
		t.Fatalf("forwarded: %s", got)
	}
	req.Header.Set("X-Real-IP", "3.3.3.3")
	if got := realIPFromRequest(req); got != "3.3.3.3" {
		t.Fatalf("real ip: %s", got)
	}
}

func TestOriginMatcher(t *testing.T) {
	m := newOriginMatcher([]string{"http://localhost:5173/", "*.example.org", " "})
	cases := map[string]bool{
		"http://localhost:5173":     true,
		"https://painel.example.org": true,
		"https://example.org":       false,
		"https://evil.org":          false,
		"":                          false,
	}
	for origin, want := range cases {
		if got := m.match(origin); got != want {
			t.Fatalf("match(%q) = %v", origin, got)
		}
	}
}

func TestCORSPassesSimpleOptions(t *testing.T) {
	var reached bool
	h := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true }))
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !reached {
		t.Fatal("OPTIONS without preflight headers must reach the handler")
	}
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
