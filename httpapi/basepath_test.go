package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeBasePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"studio", "/studio"},
		{"/studio", "/studio"},
		{"/studio/", "/studio"},
		{" /studio// ", "/studio"},
	}
	for _, tc := range cases {
		if got := normalizeBasePath(tc.in); got != tc.want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		baseURL string
		origin  string
		want    bool
	}{
		{"", "https://evil.example", true},
		{"https://studio.example.com/app", "", true},
		{"https://studio.example.com/app", "https://studio.example.com", true},
		{"https://studio.example.com", "HTTPS://STUDIO.example.com", true},
		{"https://studio.example.com", "http://studio.example.com", false},
		{"https://studio.example.com", "https://evil.example", false},
	}
	for _, tc := range cases {
		if got := originAllowed(tc.baseURL, tc.origin); got != tc.want {
			t.Fatalf("originAllowed(%q, %q) = %v, want %v", tc.baseURL, tc.origin, got, tc.want)
		}
	}
}

func TestMountBasePathRedirectsBarePrefix(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	})
	handler := mountBasePath("/studio", inner)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studio", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/studio/" {
		t.Fatalf("unexpected location %q", loc)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studio/ping", nil))
	if rec.Body.String() != "/ping" {
		t.Fatalf("expected stripped path, got %q", rec.Body.String())
	}
}
