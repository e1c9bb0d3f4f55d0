package sessionid

import (
	"net/http/httptest"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"abc-123", "abc-123", true},
		{"  padded  ", "padded", true},
		{"tab:1.2_x", "tab:1.2_x", true},
		{"", "", false},
		{"has space", "", false},
		{"../etc", "", false},
	}
	for _, tc := range cases {
		got, ok := Sanitize(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Sanitize(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFromRequestPrefersHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/chat?session_id=from-query", nil)
	r.Header.Set(HeaderName, "from-header")
	if got := FromRequest(r); got != "from-header" {
		t.Fatalf("expected header id, got %q", got)
	}

	r = httptest.NewRequest("GET", "/ws/chat?session_id=from-query", nil)
	if got := FromRequest(r); got != "from-query" {
		t.Fatalf("expected query id, got %q", got)
	}

	r = httptest.NewRequest("GET", "/ws/chat?session_id=bad%20id", nil)
	if got := FromRequest(r); got != "" {
		t.Fatalf("expected malformed id to be dropped, got %q", got)
	}
}

func TestNewIsValid(t *testing.T) {
	id := New()
	if _, ok := Sanitize(id); !ok {
		t.Fatalf("generated id %q does not pass Sanitize", id)
	}
	if id == New() {
		t.Fatal("expected distinct ids")
	}
}

func TestIPFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	if got := IPFromRequest(r); got != "10.0.0.7" {
		t.Fatalf("expected host only, got %q", got)
	}
	r.RemoteAddr = "10.0.0.7"
	if got := IPFromRequest(r); got != "10.0.0.7" {
		t.Fatalf("expected raw addr fallback, got %q", got)
	}
}

func TestNewIsAcceptedBySanitize(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if got, ok := Sanitize(a); !ok || got != a {
		t.Fatalf("Sanitize(New()) = (%q, %v)", got, ok)
	}
}
