package store

import (
	"errors"
	"sync"
	"testing"

	"pkt.systems/studiosync/schema"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []schema.StoreEvent
}

func (r *recordingObserver) OnStoreChange(event schema.StoreEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingObserver) count(name schema.StoreName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.Store == name {
			n++
		}
	}
	return n
}

func TestTypingsMergeIsUnionWithOverwrite(t *testing.T) {
	obs := &recordingObserver{}
	set := NewSet(obs, nil)

	set.Typings.Merge(schema.TypingsData{"a": "x"})
	set.Typings.Merge(schema.TypingsData{"b": "y"})
	set.Typings.Merge(schema.TypingsData{"a": "z"})

	libs := set.Typings.State().Libraries
	if len(libs) != 2 || libs["a"] != "z" || libs["b"] != "y" {
		t.Fatalf("unexpected typings: %+v", libs)
	}
	if got := obs.count(schema.StoreTypings); got != 3 {
		t.Fatalf("expected 3 typings notifications, got %d", got)
	}
}

func TestUnchangedUpdateDoesNotNotify(t *testing.T) {
	obs := &recordingObserver{}
	set := NewSet(obs, nil)

	if !set.Typings.Merge(schema.TypingsData{"a": "x"}) {
		t.Fatalf("expected first merge to change state")
	}
	if set.Typings.Merge(schema.TypingsData{"a": "x"}) {
		t.Fatalf("expected repeated merge to be a no-op")
	}
	if got := obs.count(schema.StoreTypings); got != 1 {
		t.Fatalf("expected 1 notification, got %d", got)
	}
	if rev := set.Revisions()[schema.StoreTypings]; rev != 1 {
		t.Fatalf("expected revision 1, got %d", rev)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	set := NewSet(nil, nil)
	set.Version.Upsert(schema.Version{ID: "v1", Name: "one"})
	set.Version.ApplyDeployment("v1", schema.DeploymentStateData{State: "running"})

	state := set.Version.State()
	v := state.Versions["v1"]
	v.Deployment.State = "mutated"
	state.Versions["v2"] = schema.Version{ID: "v2"}

	again := set.Version.State()
	if again.Versions["v1"].Deployment.State != "running" {
		t.Fatalf("deployment leaked through snapshot: %+v", again.Versions["v1"].Deployment)
	}
	if _, ok := again.Versions["v2"]; ok {
		t.Fatalf("map leaked through snapshot")
	}
}

func TestMergeDeploymentCreatesStub(t *testing.T) {
	state := VersionState{Versions: map[schema.VersionID]schema.Version{}}
	state = MergeDeployment(state, "v9", schema.DeploymentStateData{State: "queued", EnvironmentID: "e1"})
	v, ok := state.Versions["v9"]
	if !ok || v.Deployment == nil {
		t.Fatalf("expected stub version with deployment, got %+v", state.Versions)
	}
	if v.Deployment.State != "queued" || v.Deployment.EnvironmentID != "e1" {
		t.Fatalf("unexpected deployment: %+v", v.Deployment)
	}
}

func TestMergeVersionUpdatePatchesOnlySetFields(t *testing.T) {
	state := VersionState{Versions: map[schema.VersionID]schema.Version{
		"v1": {ID: "v1", Name: "one", Private: true, CreatedBy: "u1"},
	}}
	readOnly := true
	state = MergeVersionUpdate(state, "v1", schema.VersionUpdatedData{ReadOnly: &readOnly})
	v := state.Versions["v1"]
	if !v.ReadOnly || !v.Private || v.Name != "one" || v.CreatedBy != "u1" {
		t.Fatalf("unexpected version after patch: %+v", v)
	}

	state = MergeVersionUpdate(state, "missing", schema.VersionUpdatedData{ReadOnly: &readOnly})
	if _, ok := state.Versions["missing"]; ok {
		t.Fatalf("did not expect unknown version to be created")
	}
}

func TestUpsertKeepsDeployment(t *testing.T) {
	set := NewSet(nil, nil)
	set.Version.ApplyDeployment("v1", schema.DeploymentStateData{State: "running"})
	set.Version.Upsert(schema.Version{ID: "v1", Name: "loaded"})
	v, ok := set.Version.Version("v1")
	if !ok || v.Name != "loaded" || v.Deployment == nil || v.Deployment.State != "running" {
		t.Fatalf("unexpected version: %+v", v)
	}
}

func TestEnvironmentStatusTouchesOneEnvironment(t *testing.T) {
	set := NewSet(nil, nil)
	set.Environment.SetEnvironments([]schema.Environment{{ID: "e1", Name: "prod"}, {ID: "e2", Name: "dev"}})
	set.Environment.ApplyStatus("e1", schema.EnvironmentStatusData{Status: "healthy"})

	e1, _ := set.Environment.Environment("e1")
	e2, _ := set.Environment.Environment("e2")
	if e1.Status != "healthy" || e1.Name != "prod" {
		t.Fatalf("unexpected e1: %+v", e1)
	}
	if e2.Status != "" {
		t.Fatalf("expected e2 untouched, got %+v", e2)
	}

	set.Environment.SetEnvironments([]schema.Environment{{ID: "e1", Name: "prod"}})
	e1, _ = set.Environment.Environment("e1")
	if e1.Status != "healthy" {
		t.Fatalf("expected status to survive reload, got %+v", e1)
	}
	if _, ok := set.Environment.Environment("e2"); ok {
		t.Fatalf("expected e2 removed")
	}
}

func TestOrganizationSelection(t *testing.T) {
	set := NewSet(nil, nil)
	set.Organization.SetOrganizations([]schema.Organization{{ID: "o1", Role: "Member"}, {ID: "o2", Role: "Admin"}})
	if set.Organization.Select("missing") {
		t.Fatalf("did not expect unknown org to be selected")
	}
	set.Organization.Select("o2")
	if role := set.Organization.Role(); role != "Admin" {
		t.Fatalf("expected Admin, got %q", role)
	}
	set.Organization.SetOrganizations([]schema.Organization{{ID: "o1", Role: "Member"}})
	if cur := set.Organization.State().Current; cur != "" {
		t.Fatalf("expected selection cleared, got %q", cur)
	}
}

func TestCatalogDefaultsUntilLoaded(t *testing.T) {
	set := NewSet(nil, nil)
	if set.Utils.State().Loaded {
		t.Fatalf("did not expect catalog loaded")
	}
	if set.Utils.Catalog().Revision != "builtin" {
		t.Fatalf("expected builtin catalog")
	}
	set.Utils.SetCatalog(schema.Catalog{AdminRole: "Owner", Revision: "r2"})
	if got := set.Utils.Catalog(); got.Admin() != "Owner" || got.Revision != "r2" {
		t.Fatalf("unexpected catalog: %+v", got)
	}
}

func TestAuthSignInOut(t *testing.T) {
	set := NewSet(nil, nil)
	set.Auth.SignIn(" u1 ", "a@b", "A")
	if set.Auth.User() != "u1" {
		t.Fatalf("expected trimmed user, got %q", set.Auth.User())
	}
	if !set.Auth.SignOut() || set.Auth.User() != "" {
		t.Fatalf("expected sign out")
	}
}

func TestAuthClaimKeepsFirstSubject(t *testing.T) {
	set := NewSet(nil, nil)
	changed, err := set.Auth.Claim("u1", "a@b", "A")
	if err != nil || !changed {
		t.Fatalf("expected first claim to sign in, got %v %v", changed, err)
	}
	if changed, err = set.Auth.Claim("u1", "a@b", "A"); err != nil || changed {
		t.Fatalf("expected repeat claim to be a no-op, got %v %v", changed, err)
	}
	if _, err = set.Auth.Claim("u1", "new@b", "A"); err != nil || set.Auth.State().Email != "new@b" {
		t.Fatalf("expected profile refresh, got %+v %v", set.Auth.State(), err)
	}
	_, err = set.Auth.Claim("u2", "", "")
	if !errors.Is(err, schema.ErrSubjectMismatch) || !errors.Is(err, schema.ErrPermissionDenied) {
		t.Fatalf("expected subject mismatch, got %v", err)
	}
	if set.Auth.User() != "u1" {
		t.Fatalf("expected u1 to stay signed in, got %q", set.Auth.User())
	}
}

func TestMergeFunctionsAcceptZeroState(t *testing.T) {
	typings := MergeTypings(TypingsState{}, schema.TypingsData{"a": "x"})
	if typings.Libraries["a"] != "x" {
		t.Fatalf("expected typings merged into zero state, got %+v", typings)
	}
	versions := MergeDeployment(VersionState{}, "v1", schema.DeploymentStateData{State: "running"})
	if v, ok := versions.Versions["v1"]; !ok || v.Deployment == nil || v.Deployment.State != "running" {
		t.Fatalf("expected deployment stub in zero state, got %+v", versions)
	}
	name := "renamed"
	if got := MergeVersionUpdate(VersionState{}, "v1", schema.VersionUpdatedData{Name: &name}); len(got.Versions) != 0 {
		t.Fatalf("expected unknown version ignored, got %+v", got)
	}
	envs := MergeEnvironmentStatus(EnvironmentState{}, "env-1", schema.EnvironmentStatusData{Status: "ok"})
	if envs.Environments["env-1"].Status != "ok" {
		t.Fatalf("expected environment in zero state, got %+v", envs)
	}
}

func TestMergeFunctionsLeaveInputUntouched(t *testing.T) {
	in := TypingsState{Libraries: map[string]string{"a": "x"}}
	out := MergeTypings(in, schema.TypingsData{"a": "z", "b": "y"})
	if in.Libraries["a"] != "x" || len(in.Libraries) != 1 {
		t.Fatalf("input typings mutated: %+v", in.Libraries)
	}
	if out.Libraries["a"] != "z" || out.Libraries["b"] != "y" {
		t.Fatalf("unexpected merge result %+v", out.Libraries)
	}

	versions := VersionState{Versions: map[schema.VersionID]schema.Version{"v1": {ID: "v1"}}}
	_ = MergeDeployment(versions, "v1", schema.DeploymentStateData{State: "failed"})
	if versions.Versions["v1"].Deployment != nil {
		t.Fatalf("input versions mutated: %+v", versions.Versions["v1"])
	}
	readOnly := true
	_ = MergeVersionUpdate(versions, "v1", schema.VersionUpdatedData{ReadOnly: &readOnly})
	if versions.Versions["v1"].ReadOnly {
		t.Fatalf("input version flags mutated")
	}

	envs := EnvironmentState{Environments: map[schema.EnvironmentID]schema.Environment{}}
	_ = MergeEnvironmentStatus(envs, "env-1", schema.EnvironmentStatusData{Status: "ok"})
	if len(envs.Environments) != 0 {
		t.Fatalf("input environments mutated: %+v", envs.Environments)
	}
}
