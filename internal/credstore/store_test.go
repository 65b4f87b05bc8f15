package credstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisPair(t *testing.T) (*RedisStore, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})

	ctx := context.Background()
	a, err := NewRedisStore(ctx, rdb, RedisOptions{Origin: "painel.local"})
	if err != nil {
		t.Fatalf("store a: %v", err)
	}
	b, err := NewRedisStore(ctx, rdb, RedisOptions{Origin: "painel.local"})
	if err != nil {
		t.Fatalf("store b: %v", err)
	}

	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return a, b
}

func waitChange(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
	}
	return Change{}
}

func testRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, KeyAccessToken); ok || err != nil {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	access := "eyJhbGciOiJIUzI1NiJ9.\x00binário.ç"
	refresh := "opaque-refresh-token"
	if err := s.SetMany(ctx, map[string]string{
		KeyAccessToken:  access,
		KeyRefreshToken: refresh,
		KeyUser:         `{"id_number":"12345678"}`,
	}); err != nil {
		t.Fatalf("set many: %v", err)
	}

	got, ok, err := s.Get(ctx, KeyAccessToken)
	if err != nil || !ok || got != access {
		t.Fatalf("access token mismatch: %q ok=%v err=%v", got, ok, err)
	}
	got, _, _ = s.Get(ctx, KeyRefreshToken)
	if got != refresh {
		t.Fatalf("refresh token mismatch: %q", got)
	}

	if err := s.Remove(ctx, SessionKeys...); err != nil {
		t.Fatalf("remove: %v", err)
	}
	for _, key := range SessionKeys {
		if _, ok, _ := s.Get(ctx, key); ok {
			t.Fatalf("key %s still present", key)
		}
	}
	if err := s.Remove(ctx, SessionKeys...); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func testExternalChange(t *testing.T, a, b Store) {
	ctx := context.Background()

	fromA := make(chan Change, 8)
	cancelA := a.OnExternalChange(func(c Change) { fromA <- c })
	defer cancelA()
	fromB := make(chan Change, 8)
	cancelB := b.OnExternalChange(func(c Change) { fromB <- c })
	defer cancelB()

	if err := a.Set(ctx, KeyUser, `{"user_level":"admin"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	c := waitChange(t, fromB)
	if c.Key != KeyUser || c.Value != `{"user_level":"admin"}` || c.Deleted {
		t.Fatalf("unexpected change: %+v", c)
	}

	if err := a.Remove(ctx, KeyUser); err != nil {
		t.Fatalf("remove: %v", err)
	}
	c = waitChange(t, fromB)
	if c.Key != KeyUser || !c.Deleted {
		t.Fatalf("expected deletion, got %+v", c)
	}

	select {
	case c := <-fromA:
		t.Fatalf("writer must not observe its own change: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func testRemoveAnnouncesPresentKeys(t *testing.T, a, b Store) {
	ctx := context.Background()

	fromB := make(chan Change, 8)
	cancel := b.OnExternalChange(func(c Change) { fromB <- c })
	defer cancel()

	if err := a.Set(ctx, KeyAccessToken, "a1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	waitChange(t, fromB)

	if err := a.Remove(ctx, SessionKeys...); err != nil {
		t.Fatalf("remove: %v", err)
	}
	c := waitChange(t, fromB)
	if c.Key != KeyAccessToken || !c.Deleted {
		t.Fatalf("expected access token deletion, got %+v", c)
	}

	// marcador: nada pode chegar entre a remoção e esta escrita
	if err := a.Set(ctx, KeyUser, "marcador"); err != nil {
		t.Fatalf("set: %v", err)
	}
	c = waitChange(t, fromB)
	if c.Key != KeyUser || c.Deleted || c.Value != "marcador" {
		t.Fatalf("absent keys must not be announced, got %+v", c)
	}

	if err := a.Remove(ctx, KeyRefreshToken); err != nil {
		t.Fatalf("remove: %v", err)
	}
	select {
	case c := <-fromB:
		t.Fatalf("removing an absent key announced %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	tab := NewOrigin().Tab()
	defer tab.Close()
	testRoundTrip(t, tab)
}

func TestMemoryStoreExternalChange(t *testing.T) {
	origin := NewOrigin()
	a, b := origin.Tab(), origin.Tab()
	defer a.Close()
	defer b.Close()
	testExternalChange(t, a, b)
}

func TestMemoryStoreRemoveAnnouncesPresentKeys(t *testing.T) {
	origin := NewOrigin()
	a, b := origin.Tab(), origin.Tab()
	defer a.Close()
	defer b.Close()
	testRemoveAnnouncesPresentKeys(t, a, b)
}

func TestMemoryTabsShareData(t *testing.T) {
	origin := NewOrigin()
	a, b := origin.Tab(), origin.Tab()
	defer a.Close()
	defer b.Close()

	if err := a.Set(context.Background(), KeyRefreshToken, "r1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, ok, _ := b.Get(context.Background(), KeyRefreshToken); !ok || got != "r1" {
		t.Fatalf("tab b read %q ok=%v", got, ok)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	a, _ := newRedisPair(t)
	testRoundTrip(t, a)
}

func TestRedisStoreExternalChange(t *testing.T) {
	a, b := newRedisPair(t)
	testExternalChange(t, a, b)
}

func TestRedisStoreRemoveAnnouncesPresentKeys(t *testing.T) {
	a, b := newRedisPair(t)
	testRemoveAnnouncesPresentKeys(t, a, b)
}

func TestRedisStoreRequiresOrigin(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	if _, err := NewRedisStore(context.Background(), rdb, RedisOptions{}); err == nil {
		t.Fatal("expected error without origin")
	}
}
