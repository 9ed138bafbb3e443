package schema

import (
	"errors"
	"testing"
)

func TestValidateVersionID(t *testing.T) {
	cases := []struct {
		name    string
		version VersionID
		valid   bool
	}{
		{"simple", "v1", true},
		{"uuid", "0b6b1d2e-7a4f-4c55-9a1e-2f3b9c0d1e2f", true},
		{"empty", "", false},
		{"leading-space", " v1", false},
		{"inner-space", "v 1", false},
		{"slash", "v/1", false},
		{"control", "v\x001", false},
	}
	for _, tc := range cases {
		err := ValidateVersionID(tc.version)
		if tc.valid && err != nil {
			t.Fatalf("case %q expected valid, got error: %v", tc.name, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalidVersion) {
			t.Fatalf("case %q expected ErrInvalidVersion, got %v", tc.name, err)
		}
	}
}

func TestNormalizeTabPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/databases/main", "/databases/main", true},
		{"databases/main", "/databases/main", true},
		{" /databases/main/ ", "/databases/main", true},
		{"/", "/", true},
		{"///", "/", true},
		{"", "", false},
		{"   ", "", false},
		{"/a\nb", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeTabPath(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("NormalizeTabPath(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("NormalizeTabPath(%q) expected error", tc.in)
		}
		if got != tc.want {
			t.Fatalf("NormalizeTabPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTabType(t *testing.T) {
	if got, err := NormalizeTabType(""); err != nil || got != TabTypeCode {
		t.Fatalf("expected empty type to default to code, got %q (%v)", got, err)
	}
	if got, err := NormalizeTabType(" Database "); err != nil || got != TabTypeDatabase {
		t.Fatalf("expected database, got %q (%v)", got, err)
	}
	if _, err := NormalizeTabType("spreadsheet"); !errors.Is(err, ErrInvalidTabType) {
		t.Fatalf("expected ErrInvalidTabType, got %v", err)
	}
}

func TestCatalogAllows(t *testing.T) {
	catalog := DefaultCatalog()
	if !catalog.Allows(ScopeApp, "Admin", "anything") {
		t.Fatalf("expected admin to be allowed everything")
	}
	if !catalog.Allows(ScopeApp, "Developer", "update") {
		t.Fatalf("expected developer to update")
	}
	if catalog.Allows(ScopeApp, "Member", "update") {
		t.Fatalf("expected member to be read-only")
	}
	if catalog.Allows(ScopeApp, "", "read") {
		t.Fatalf("expected empty role to be denied")
	}
	custom := Catalog{AdminRole: "Owner", Roles: map[ScopeType]map[Role][]ActionKey{ScopeOrg: {"Ops": {WildcardAction}}}}
	if !custom.Allows(ScopeApp, "Owner", "deploy") {
		t.Fatalf("expected custom admin role to be allowed")
	}
	if !custom.Allows(ScopeOrg, "Ops", "deploy") {
		t.Fatalf("expected wildcard grant")
	}
	if custom.Allows(ScopeApp, "Ops", "deploy") {
		t.Fatalf("expected grant to be scope bound")
	}
}
