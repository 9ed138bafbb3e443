package permission

import (
	"context"
	"testing"

	"pkt.systems/studiosync/internal/store"
	"pkt.systems/studiosync/schema"
)

func TestEvaluateVersionRules(t *testing.T) {
	catalog := schema.DefaultCatalog()
	readOnly := schema.Version{ID: "v1", ReadOnly: true, CreatedBy: "U1"}
	private := schema.Version{ID: "v2", Private: true, CreatedBy: "U1"}
	public := schema.Version{ID: "v3", CreatedBy: "U1"}

	cases := []struct {
		name string
		in   Input
		want bool
	}{
		{"read-only member non-owner", Input{User: "U2", AppRole: "Member", Version: readOnly, Catalog: catalog}, false},
		{"read-only admin non-owner", Input{User: "U2", AppRole: "Admin", Version: readOnly, Catalog: catalog}, true},
		{"read-only owner member", Input{User: "U1", AppRole: "Member", Version: readOnly, Catalog: catalog}, true},
		{"private non-owner developer", Input{User: "U2", AppRole: "Developer", Version: private, Catalog: catalog}, false},
		{"private non-owner admin", Input{User: "U2", AppRole: "Admin", Version: private, Catalog: catalog}, false},
		{"private owner developer", Input{User: "U1", AppRole: "Developer", Version: private, Catalog: catalog}, true},
		{"private owner member", Input{User: "U1", AppRole: "Member", Version: private, Catalog: catalog}, false},
		{"public developer", Input{User: "U2", AppRole: "Developer", Version: public, Catalog: catalog}, true},
		{"public member", Input{User: "U2", AppRole: "Member", Version: public, Catalog: catalog}, false},
		{"public no role", Input{User: "U2", Version: public, Catalog: catalog}, false},
		{"org role fallback", Input{User: "U2", OrgRole: "Admin", Version: readOnly, Catalog: catalog}, true},
		{"anonymous read-only", Input{Version: schema.Version{ReadOnly: true}, Catalog: catalog}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.in, schema.ScopeVersion, "update"); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestPrivateOwnerMatchesAppLevelPermission(t *testing.T) {
	catalog := schema.DefaultCatalog()
	version := schema.Version{ID: "v1", Private: true, CreatedBy: "U1"}
	for _, role := range []schema.Role{"Admin", "Developer", "Member", ""} {
		for _, action := range []schema.ActionKey{"read", "update", "deploy", "billing"} {
			in := Input{User: "U1", AppRole: role, Version: version, Catalog: catalog}
			if got, want := Evaluate(in, schema.ScopeVersion, action), Evaluate(in, schema.ScopeApp, action); got != want {
				t.Fatalf("role %q action %q: expected %v, got %v", role, action, want, got)
			}
		}
	}
}

func TestEvaluateScopes(t *testing.T) {
	catalog := schema.DefaultCatalog()
	in := Input{OrgRole: "Member", AppRole: "Developer", ProjectRole: "Member", Catalog: catalog}
	if Evaluate(in, schema.ScopeOrg, "update") {
		t.Fatalf("org member should not update")
	}
	if !Evaluate(in, schema.ScopeApp, "deploy") {
		t.Fatalf("app developer should deploy")
	}
	if Evaluate(in, schema.ScopeProject, "update") {
		t.Fatalf("project member should not update")
	}
	if Evaluate(in, schema.ScopeType("planet"), "read") {
		t.Fatalf("unknown scope should be denied")
	}
}

func newStores(t *testing.T) *store.Set {
	t.Helper()
	stores := store.NewSet(nil, nil)
	stores.Auth.SignIn("U2", "", "")
	stores.Application.Select("app-1", "Member", "")
	stores.Version.Upsert(schema.Version{ID: "v1", ReadOnly: true, CreatedBy: "U1"})
	stores.Version.Select("v1")
	return stores
}

func TestEvaluatorFollowsStoreChanges(t *testing.T) {
	stores := newStores(t)
	eval, err := New(stores, 0)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	ctx := context.Background()
	if eval.Can(ctx, schema.ScopeVersion, "update") {
		t.Fatalf("member should not edit read-only version")
	}
	stores.Application.Select("app-1", "Admin", "")
	if !eval.Can(ctx, schema.ScopeVersion, "update") {
		t.Fatalf("admin should edit read-only version")
	}

	readOnly := false
	private := true
	stores.Version.ApplyUpdate("v1", schema.VersionUpdatedData{ReadOnly: &readOnly, Private: &private})
	if eval.CanEditVersion(ctx, "v1", "update") {
		t.Fatalf("non-owner should not edit private version")
	}
}

func TestEvaluatorCatalogReplacementInvalidatesMemo(t *testing.T) {
	stores := newStores(t)
	stores.Version.Upsert(schema.Version{ID: "v2"})
	eval, err := New(stores, 4)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	ctx := context.Background()
	if eval.CanEditVersion(ctx, "v2", "update") {
		t.Fatalf("member should not update with default catalog")
	}
	catalog := schema.DefaultCatalog()
	catalog.Roles[schema.ScopeApp]["Member"] = []schema.ActionKey{"read", "update"}
	catalog.Revision = "builtin"
	stores.Utils.SetCatalog(catalog)
	if !eval.CanEditVersion(ctx, "v2", "update") {
		t.Fatalf("expected replaced catalog to grant update")
	}
	if eval.Len() != 2 {
		t.Fatalf("expected two memo entries, got %d", eval.Len())
	}
}

func TestEvaluatorUnknownVersionUsesAppPermission(t *testing.T) {
	stores := newStores(t)
	stores.Application.Select("app-1", "Developer", "")
	eval, err := New(stores, 0)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	if !eval.CanEditVersion(context.Background(), "missing", "update") {
		t.Fatalf("expected unknown version to fall back to app permission")
	}
}
