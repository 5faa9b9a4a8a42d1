package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "standard", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "raw token without scheme", header: "abc.def.ghi", want: "abc.def.ghi"},
		{name: "surrounding whitespace", header: "  Bearer abc  ", want: "abc"},
		{name: "empty", header: "", wantErr: true},
		{name: "scheme only", header: "Bearer ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractBearerToken(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractBearerToken: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHandshakeToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/realtime/chat?access_token=query-tok", nil)
	r.Header.Set(authHeader, "Bearer header-tok")
	if got := handshakeToken(r); got != "query-tok" {
		t.Fatalf("query param must win, got %q", got)
	}

	r = httptest.NewRequest("GET", "/v1/realtime/chat", nil)
	r.Header.Set(authHeader, "Bearer header-tok")
	if got := handshakeToken(r); got != "header-tok" {
		t.Fatalf("header fallback, got %q", got)
	}

	r = httptest.NewRequest("GET", "/v1/realtime/chat", nil)
	if got := handshakeToken(r); got != "" {
		t.Fatalf("no credential should yield empty, got %q", got)
	}
}

func TestIsPublicPath(t *testing.T) {
	for _, p := range []string{"/v1/auth/login", "/healthz", "/metrics", "/"} {
		if !isPublicPath(p) {
			t.Fatalf("%s should be public", p)
		}
	}
	for _, p := range []string{"/v1/auth/logout-all", "/v1/realtime/chat/send", "/v1/secrets"} {
		if isPublicPath(p) {
			t.Fatalf("%s should require authentication", p)
		}
	}
}
