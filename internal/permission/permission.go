// Package permission decides whether the signed-in subject may perform an
// action on an app, organization, project or version scope.
package permission

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"pkt.systems/pslog"
	"pkt.systems/studiosync/internal/store"
	"pkt.systems/studiosync/schema"
)

// DefaultMemoSize bounds the number of memoized evaluations.
const DefaultMemoSize = 512

// Input is everything an evaluation depends on.
type Input struct {
	User        schema.UserID
	OrgRole     schema.Role
	AppRole     schema.Role
	ProjectRole schema.Role
	Version     schema.Version
	Catalog     schema.Catalog

	catalogRev uint64
}

// Evaluate is the pure permission policy. It never fails; missing context
// evaluates to false.
//
// Version rules:
//   - a read-only version is editable by its creator or by the admin role.
//   - any other version is editable when it is not private (or the subject
//     created it) and the subject holds action on the app scope.
func Evaluate(in Input, scope schema.ScopeType, action schema.ActionKey) bool {
	switch scope {
	case schema.ScopeOrg:
		return in.Catalog.Allows(schema.ScopeOrg, in.OrgRole, action)
	case schema.ScopeApp:
		return in.Catalog.Allows(schema.ScopeApp, in.appRole(), action)
	case schema.ScopeProject:
		role := in.ProjectRole
		if role == "" {
			role = in.appRole()
		}
		return in.Catalog.Allows(schema.ScopeProject, role, action)
	case schema.ScopeVersion:
		return evaluateVersion(in, action)
	default:
		return false
	}
}

func evaluateVersion(in Input, action schema.ActionKey) bool {
	owner := in.User != "" && in.Version.CreatedBy == in.User
	if in.Version.ReadOnly {
		role := in.appRole()
		return owner || (role != "" && role == in.Catalog.Admin())
	}
	if in.Version.Private && !owner {
		return false
	}
	return Evaluate(in, schema.ScopeApp, action)
}

// appRole is the role used for app-level checks: the app role when one is
// selected, otherwise the organization role.
func (in Input) appRole() schema.Role {
	if in.AppRole != "" {
		return in.AppRole
	}
	return in.OrgRole
}

// Evaluator evaluates against the latest store snapshot on every call.
type Evaluator struct {
	stores *store.Set
	memo   *lru.Cache[string, bool]
}

// New builds an Evaluator over stores. A non-positive memoSize uses DefaultMemoSize.
func New(stores *store.Set, memoSize int) (*Evaluator, error) {
	if stores == nil {
		return nil, fmt.Errorf("permission: %w", schema.ErrInvalidRequest)
	}
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, err := lru.New[string, bool](memoSize)
	if err != nil {
		return nil, fmt.Errorf("permission memo: %w", err)
	}
	return &Evaluator{stores: stores, memo: memo}, nil
}

// Input reads the permission context for versionID from the stores. An empty
// versionID uses the current version; an unknown one carries zero flags.
func (e *Evaluator) Input(versionID schema.VersionID) Input {
	app := e.stores.Application.State()
	in := Input{
		User:        e.stores.Auth.User(),
		OrgRole:     e.stores.Organization.Role(),
		AppRole:     app.Role,
		ProjectRole: app.ProjectRole,
	}
	in.Catalog, in.catalogRev = e.stores.Utils.CatalogRevision()
	if versionID == "" {
		if v, ok := e.stores.Version.Current(); ok {
			in.Version = v
		}
		return in
	}
	if v, ok := e.stores.Version.Version(versionID); ok {
		in.Version = v
	} else {
		in.Version = schema.Version{ID: versionID}
	}
	return in
}

// Can evaluates scope/action for the current context.
func (e *Evaluator) Can(ctx context.Context, scope schema.ScopeType, action schema.ActionKey) bool {
	return e.evaluate(ctx, e.Input(""), scope, action)
}

// CanEditVersion evaluates the version policy for a specific version.
func (e *Evaluator) CanEditVersion(ctx context.Context, versionID schema.VersionID, action schema.ActionKey) bool {
	return e.evaluate(ctx, e.Input(versionID), schema.ScopeVersion, action)
}

func (e *Evaluator) evaluate(ctx context.Context, in Input, scope schema.ScopeType, action schema.ActionKey) bool {
	key := memoKey(in, scope, action)
	if allowed, ok := e.memo.Get(key); ok {
		return allowed
	}
	allowed := Evaluate(in, scope, action)
	e.memo.Add(key, allowed)
	pslog.Ctx(ctx).Trace("permission evaluated", "scope", scope, "action", action, "version", in.Version.ID, "allowed", allowed)
	return allowed
}

// memoKey covers every field Evaluate reads. The catalog is identified by
// the utils store revision it was read at.
func memoKey(in Input, scope schema.ScopeType, action schema.ActionKey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%q|%q|%q|%q|%d", scope, action, in.User, in.OrgRole, in.AppRole, in.ProjectRole, in.catalogRev)
	if scope == schema.ScopeVersion {
		fmt.Fprintf(&b, "|%q|%t|%t|%q", in.Version.ID, in.Version.ReadOnly, in.Version.Private, in.Version.CreatedBy)
	}
	return b.String()
}

// Len reports the number of memoized evaluations.
func (e *Evaluator) Len() int {
	return e.memo.Len()
}
