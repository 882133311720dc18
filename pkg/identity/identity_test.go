package identity

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-User-Id", "alice")
	r.Header.Set("Posit-Connect-User-Session-Token", "sess-tok")

	id := FromRequest(r)
	if id.Principal != "alice" {
		t.Errorf("Principal = %q, want alice", id.Principal)
	}
	if id.SessionToken != "sess-tok" {
		t.Errorf("SessionToken = %q, want sess-tok", id.SessionToken)
	}
}

func TestFromRequest_DefaultsToAnonymous(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	id := FromRequest(r)
	if id.Principal != Anonymous {
		t.Errorf("Principal = %q, want %q", id.Principal, Anonymous)
	}
	if id.SessionToken != "" {
		t.Errorf("SessionToken = %q, want empty", id.SessionToken)
	}
}

func TestFromRequest_HeaderCaseInsensitive(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("x-user-id", "bob")
	if got := FromRequest(r).Principal; got != "bob" {
		t.Errorf("Principal = %q, want bob", got)
	}
}

func TestContextRoundTrip(t *testing.T) {
	id := Identity{Principal: "alice", SessionToken: "tok"}
	ctx := WithIdentity(context.Background(), id)
	if got := FromContext(ctx); got != id {
		t.Errorf("FromContext() = %+v, want %+v", got, id)
	}
}

func TestFromContext_Empty(t *testing.T) {
	got := FromContext(context.Background())
	if got.Principal != Anonymous {
		t.Errorf("Principal = %q, want %q", got.Principal, Anonymous)
	}
}
