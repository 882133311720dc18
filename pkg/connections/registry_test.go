package connections

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/txn2/analytics-gateway/pkg/identity"
)

// fakeEngine counts Close calls.
type fakeEngine struct {
	name       string
	closeCalls int
}

func (f *fakeEngine) QueryContext(_ context.Context, _ string, _ ...any) (*sql.Rows, error) {
	return nil, nil
}
func (f *fakeEngine) PingContext(_ context.Context) error { return nil }
func (f *fakeEngine) Close() error                        { f.closeCalls++; return nil }

func fakeFactory(name string, calls *int) Factory {
	return func(_ context.Context, _ identity.Identity) (Engine, error) {
		if calls != nil {
			*calls++
		}
		return &fakeEngine{name: name}, nil
	}
}

func ctxFor(principal string) context.Context {
	return identity.WithIdentity(context.Background(), identity.Identity{Principal: principal})
}

func TestRegistry_UnknownConnection(t *testing.T) {
	reg := NewRegistry(0)
	_, err := reg.GetEngine(context.Background(), "nope")
	if !errors.Is(err, ErrUnknownConnection) {
		t.Fatalf("GetEngine() error = %v, want ErrUnknownConnection", err)
	}
}

func TestRegistry_GetEngineCachesPerPrincipal(t *testing.T) {
	reg := NewRegistry(0)
	calls := 0
	reg.Register("warehouse", fakeFactory("warehouse", &calls), "")

	e1, err := reg.GetEngine(ctxFor("alice"), "warehouse")
	if err != nil {
		t.Fatalf("GetEngine() error = %v", err)
	}
	e2, err := reg.GetEngine(ctxFor("alice"), "warehouse")
	if err != nil {
		t.Fatalf("GetEngine() error = %v", err)
	}
	if e1 != e2 {
		t.Error("same principal should receive the identical cached engine")
	}
	if calls != 1 {
		t.Errorf("factory called %d times for one principal, want 1", calls)
	}

	if _, err := reg.GetEngine(ctxFor("bob"), "warehouse"); err != nil {
		t.Fatalf("GetEngine() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("factory called %d times across two principals, want 2", calls)
	}
}

func TestRegistry_AnonymousDefault(t *testing.T) {
	reg := NewRegistry(0)
	calls := 0
	reg.Register("db", fakeFactory("db", &calls), "")

	// A bare context and an explicit anonymous identity share a cache slot.
	_, _ = reg.GetEngine(context.Background(), "db")
	_, _ = reg.GetEngine(ctxFor(identity.Anonymous), "db")
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
}

func TestRegistry_LRUEviction(t *testing.T) {
	reg := NewRegistry(2)
	var engines []*fakeEngine
	mk := func(name string) Factory {
		return func(_ context.Context, _ identity.Identity) (Engine, error) {
			e := &fakeEngine{name: name}
			engines = append(engines, e)
			return e, nil
		}
	}
	reg.Register("db", mk("db"), "")

	_, _ = reg.GetEngine(ctxFor("u1"), "db")
	_, _ = reg.GetEngine(ctxFor("u2"), "db")
	_, _ = reg.GetEngine(ctxFor("u1"), "db") // promote u1
	_, _ = reg.GetEngine(ctxFor("u3"), "db") // evicts u2

	if engines[1].closeCalls != 1 {
		t.Errorf("u2 engine closeCalls = %d, want 1", engines[1].closeCalls)
	}
	if engines[0].closeCalls != 0 {
		t.Errorf("u1 engine closeCalls = %d, want 0", engines[0].closeCalls)
	}
}

func TestRegistry_ProviderSemantics(t *testing.T) {
	reg := NewRegistry(0)

	reg.Register("plain", fakeFactory("plain", nil), "")
	if got := reg.GetProvider("plain"); got != "" {
		t.Errorf("GetProvider(plain) = %q, want empty", got)
	}

	reg.Register("pg", fakeFactory("pg", nil), "postgresql")
	if got := reg.GetProvider("pg"); got != "postgresql" {
		t.Errorf("GetProvider(pg) = %q, want postgresql", got)
	}

	// Re-registering without a provider keeps the old tag.
	reg.Register("pg", fakeFactory("pg2", nil), "")
	if got := reg.GetProvider("pg"); got != "postgresql" {
		t.Errorf("GetProvider(pg) after re-register = %q, want postgresql", got)
	}
}

func TestRegistry_ListAndHas(t *testing.T) {
	reg := NewRegistry(0)
	reg.Register("zeta", fakeFactory("zeta", nil), "")
	reg.Register("alpha", fakeFactory("alpha", nil), "")

	names := reg.ListConnections()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("ListConnections() = %v, want [alpha zeta]", names)
	}
	if !reg.HasConnection("alpha") || reg.HasConnection("missing") {
		t.Error("HasConnection() mismatch")
	}
}

func TestRegistry_FactoryErrorPropagates(t *testing.T) {
	reg := NewRegistry(0)
	boom := errors.New("connect refused")
	reg.Register("bad", func(_ context.Context, _ identity.Identity) (Engine, error) {
		return nil, boom
	}, "")

	_, err := reg.GetEngine(ctxFor("u"), "bad")
	if !errors.Is(err, boom) {
		t.Fatalf("GetEngine() error = %v, want boom", err)
	}

	// The failure is not cached: a fixed factory succeeds next time.
	reg.Register("bad", fakeFactory("bad", nil), "")
	if _, err := reg.GetEngine(ctxFor("u"), "bad"); err != nil {
		t.Fatalf("GetEngine() after re-register error = %v", err)
	}
}

func TestRegistry_DisposeAll(t *testing.T) {
	reg := NewRegistry(0)
	var engines []*fakeEngine
	reg.Register("db", func(_ context.Context, _ identity.Identity) (Engine, error) {
		e := &fakeEngine{}
		engines = append(engines, e)
		return e, nil
	}, "")

	_, _ = reg.GetEngine(ctxFor("u1"), "db")
	_, _ = reg.GetEngine(ctxFor("u2"), "db")

	reg.DisposeAll()
	reg.DisposeAll() // idempotent

	for i, e := range engines {
		if e.closeCalls != 1 {
			t.Errorf("engine %d closeCalls = %d, want 1", i, e.closeCalls)
		}
	}
}

func TestProviderFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgresql://localhost/db", "postgresql"},
		{"postgresql+psycopg2://localhost/db", "postgresql"},
		{"mysql://root@localhost/db", "mysql"},
		{"sqlite:///tmp/local.db", "sqlite"},
		{"no-scheme-here", ""},
	}
	for _, tt := range tests {
		if got := ProviderFromURL(tt.url); got != tt.want {
			t.Errorf("ProviderFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
