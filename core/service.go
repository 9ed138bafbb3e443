package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/internal/logx"
	"pkt.systems/studiosync/internal/persist"
	"pkt.systems/studiosync/schema"
)

// service implements the tab session manager.
type service struct {
	cfg      schema.ServiceConfig
	sink     EventSink
	store    persist.Backend
	perms    PermissionChecker
	logger   pslog.Logger
	mu       sync.Mutex
	persistM sync.Mutex
	versions map[schema.VersionID]*versionState
}

// NewService constructs the tab session manager.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &service{
		cfg:      normalized,
		sink:     deps.EventSink,
		store:    deps.Persist,
		perms:    deps.Permissions,
		logger:   logger,
		versions: make(map[schema.VersionID]*versionState),
	}, nil
}

func (s *service) OpenTab(ctx context.Context, req schema.OpenTabRequest) (schema.OpenTabResponse, error) {
	if ctx == nil {
		return schema.OpenTabResponse{}, errors.New("missing context")
	}
	draft, err := s.normalizeDraft(req.VersionID, req.Draft)
	if err != nil {
		return schema.OpenTabResponse{}, err
	}
	log := logx.WithVersion(ctx, req.VersionID)
	readOnly := s.readOnly(ctx, req.VersionID)

	s.ensureLoaded(req.VersionID)
	s.mu.Lock()
	state := s.stateLocked(req.VersionID, true)
	t, created := s.openLocked(state, draft)
	event := schema.TabEvent{
		VersionID: req.VersionID,
		Type:      schema.TabEventActivated,
		Tab:       t.Snapshot(true, readOnly),
		ActiveTab: state.active,
	}
	if created {
		event.Type = schema.TabEventCreated
	}
	s.mu.Unlock()

	s.emitTabEvent(event)
	s.persistVersion(log, req.VersionID)
	log.Info("service tab opened", "tab", t.ID, "path", t.Path, "created", created)
	return schema.OpenTabResponse{Tab: event.Tab, Created: created}, nil
}

func (s *service) NavigateTo(ctx context.Context, req schema.NavigateRequest) (schema.NavigateResponse, error) {
	if ctx == nil {
		return schema.NavigateResponse{}, errors.New("missing context")
	}
	draft, err := s.normalizeDraft(req.VersionID, req.Draft)
	if err != nil {
		return schema.NavigateResponse{}, err
	}
	log := logx.WithVersion(ctx, req.VersionID)
	readOnly := s.readOnly(ctx, req.VersionID)

	s.ensureLoaded(req.VersionID)
	s.mu.Lock()
	state := s.stateLocked(req.VersionID, false)
	if state == nil || len(state.order) == 0 {
		s.mu.Unlock()
		log.Debug("service navigate ignored", "path", draft.Path, "reason", "no open tabs")
		return schema.NavigateResponse{}, nil
	}
	t, created := s.openLocked(state, draft)
	event := schema.TabEvent{
		VersionID: req.VersionID,
		Type:      schema.TabEventNavigated,
		Tab:       t.Snapshot(true, readOnly),
		ActiveTab: state.active,
		Path:      t.Path,
	}
	s.mu.Unlock()

	s.emitTabEvent(event)
	s.persistVersion(log, req.VersionID)
	log.Info("service tab navigated", "tab", t.ID, "path", t.Path, "created", created)
	return schema.NavigateResponse{Tab: event.Tab, Navigated: true, Created: created, Path: t.Path}, nil
}

// openLocked activates the tab with the draft path or appends a new one.
func (s *service) openLocked(state *versionState, draft schema.TabDraft) (*tab, bool) {
	if existing := state.byPath(draft.Path); existing != nil {
		state.active = existing.ID
		return existing, false
	}
	t := &tab{
		ID:          newTabID(),
		Title:       draft.Title,
		Path:        draft.Path,
		Type:        draft.Type,
		IsDashboard: draft.IsDashboard,
	}
	state.append(t)
	return t, true
}

func (s *service) UpdateTab(ctx context.Context, req schema.UpdateTabRequest) (schema.UpdateTabResponse, error) {
	if err := schema.ValidateVersionID(req.VersionID); err != nil {
		return schema.UpdateTabResponse{}, err
	}
	log := logx.WithVersionTab(ctx, req.VersionID, req.TabID)
	var title string
	if req.Patch.Title != nil {
		title = formatTitle(*req.Patch.Title, s.cfg.TitleMax, s.cfg.TitleSuffix)
		if title == "" {
			return schema.UpdateTabResponse{}, schema.ErrInvalidRequest
		}
	}
	readOnly := s.readOnly(ctx, req.VersionID)

	s.ensureLoaded(req.VersionID)
	s.mu.Lock()
	state := s.stateLocked(req.VersionID, false)
	if state == nil || state.tabs[req.TabID] == nil {
		s.mu.Unlock()
		log.Debug("service tab update ignored", "reason", "unknown tab")
		return schema.UpdateTabResponse{}, nil
	}
	t := state.tabs[req.TabID]
	if req.Patch.IsDirty != nil && *req.Patch.IsDirty && !t.IsDirty && readOnly {
		s.mu.Unlock()
		log.Warn("service tab update refused", "err", schema.ErrPermissionDenied)
		return schema.UpdateTabResponse{}, schema.ErrPermissionDenied
	}
	before := *t
	if req.Patch.Title != nil {
		t.Title = title
	}
	if req.Patch.IsDirty != nil {
		t.IsDirty = *req.Patch.IsDirty
	}
	if req.Patch.IsDashboard != nil {
		t.IsDashboard = *req.Patch.IsDashboard
	}
	changed := before != *t
	snapshot := t.Snapshot(state.active == t.ID, readOnly)
	event := schema.TabEvent{
		VersionID: req.VersionID,
		Type:      schema.TabEventUpdated,
		Tab:       snapshot,
		ActiveTab: state.active,
	}
	s.mu.Unlock()

	if changed {
		s.emitTabEvent(event)
		s.persistVersion(log, req.VersionID)
		log.Info("service tab updated", "dirty", snapshot.IsDirty)
	}
	return schema.UpdateTabResponse{Tab: snapshot, Found: true}, nil
}

func (s *service) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	if err := schema.ValidateVersionID(req.VersionID); err != nil {
		return schema.CloseTabResponse{}, err
	}
	log := logx.WithVersionTab(ctx, req.VersionID, req.TabID)
	readOnly := s.readOnly(ctx, req.VersionID)

	s.ensureLoaded(req.VersionID)
	s.mu.Lock()
	state := s.stateLocked(req.VersionID, false)
	if state == nil || state.tabs[req.TabID] == nil {
		s.mu.Unlock()
		log.Debug("service tab close ignored", "reason", "unknown tab")
		return schema.CloseTabResponse{}, nil
	}
	t := state.tabs[req.TabID]
	state.remove(req.TabID)
	event := schema.TabEvent{
		VersionID: req.VersionID,
		Type:      schema.TabEventClosed,
		Tab:       t.Snapshot(false, readOnly),
		ActiveTab: state.active,
	}
	s.mu.Unlock()

	s.emitTabEvent(event)
	s.persistVersion(log, req.VersionID)
	log.Info("service tab closed", "active_tab", event.ActiveTab)
	return schema.CloseTabResponse{Tab: event.Tab, Found: true, ActiveTab: event.ActiveTab}, nil
}

func (s *service) ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error) {
	if err := schema.ValidateVersionID(req.VersionID); err != nil {
		return schema.ActivateTabResponse{}, err
	}
	log := logx.WithVersionTab(ctx, req.VersionID, req.TabID)
	readOnly := s.readOnly(ctx, req.VersionID)

	s.ensureLoaded(req.VersionID)
	s.mu.Lock()
	state := s.stateLocked(req.VersionID, false)
	if state == nil || state.tabs[req.TabID] == nil {
		s.mu.Unlock()
		log.Debug("service tab activate ignored", "reason", "unknown tab")
		return schema.ActivateTabResponse{}, nil
	}
	t := state.tabs[req.TabID]
	changed := state.active != t.ID
	state.active = t.ID
	event := schema.TabEvent{
		VersionID: req.VersionID,
		Type:      schema.TabEventActivated,
		Tab:       t.Snapshot(true, readOnly),
		ActiveTab: t.ID,
	}
	s.mu.Unlock()

	if changed {
		s.emitTabEvent(event)
		s.persistVersion(log, req.VersionID)
		log.Info("service tab activated")
	}
	return schema.ActivateTabResponse{Tab: event.Tab, Found: true}, nil
}

func (s *service) ReorderTabs(ctx context.Context, req schema.ReorderTabsRequest) (schema.ReorderTabsResponse, error) {
	if err := schema.ValidateVersionID(req.VersionID); err != nil {
		return schema.ReorderTabsResponse{}, err
	}
	log := logx.WithVersion(ctx, req.VersionID)
	readOnly := s.readOnly(ctx, req.VersionID)

	s.ensureLoaded(req.VersionID)
	s.mu.Lock()
	state := s.stateLocked(req.VersionID, false)
	if state == nil {
		s.mu.Unlock()
		log.Debug("service tab reorder ignored", "reason", "unknown version")
		return schema.ReorderTabsResponse{}, nil
	}
	if !isPermutation(state.order, req.Order) {
		s.mu.Unlock()
		log.Warn("service tab reorder failed", "err", schema.ErrInvalidOrder)
		return schema.ReorderTabsResponse{}, schema.ErrInvalidOrder
	}
	state.order = append([]schema.TabID(nil), req.Order...)
	set := state.set(req.VersionID, readOnly)
	event := schema.TabEvent{
		VersionID: req.VersionID,
		Type:      schema.TabEventReordered,
		ActiveTab: state.active,
	}
	s.mu.Unlock()

	s.emitTabEvent(event)
	s.persistVersion(log, req.VersionID)
	log.Info("service tabs reordered", "tabs", len(set.Tabs))
	return schema.ReorderTabsResponse{Set: set}, nil
}

func (s *service) GetCurrentTab(ctx context.Context, req schema.GetCurrentTabRequest) (schema.GetCurrentTabResponse, error) {
	if err := schema.ValidateVersionID(req.VersionID); err != nil {
		return schema.GetCurrentTabResponse{}, err
	}
	readOnly := s.readOnly(ctx, req.VersionID)

	s.ensureLoaded(req.VersionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.stateLocked(req.VersionID, false)
	if state == nil {
		return schema.GetCurrentTabResponse{}, nil
	}
	t := state.tabs[state.active]
	if t == nil {
		return schema.GetCurrentTabResponse{}, nil
	}
	return schema.GetCurrentTabResponse{Tab: t.Snapshot(true, readOnly), Found: true}, nil
}

func (s *service) ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error) {
	if err := schema.ValidateVersionID(req.VersionID); err != nil {
		return schema.ListTabsResponse{}, err
	}
	readOnly := s.readOnly(ctx, req.VersionID)

	s.ensureLoaded(req.VersionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.stateLocked(req.VersionID, false)
	if state == nil {
		return schema.ListTabsResponse{Set: schema.TabSet{VersionID: req.VersionID, Tabs: []schema.Tab{}}}, nil
	}
	return schema.ListTabsResponse{Set: state.set(req.VersionID, readOnly)}, nil
}

func (s *service) CloseVersion(ctx context.Context, req schema.CloseVersionRequest) (schema.CloseVersionResponse, error) {
	if err := schema.ValidateVersionID(req.VersionID); err != nil {
		return schema.CloseVersionResponse{}, err
	}
	log := logx.WithVersion(ctx, req.VersionID)

	s.ensureLoaded(req.VersionID)
	// persistM is held until the snapshot is gone so no load can bring the
	// set back in between.
	s.persistM.Lock()
	s.mu.Lock()
	state := s.stateLocked(req.VersionID, false)
	if state == nil {
		s.mu.Unlock()
		s.persistM.Unlock()
		log.Debug("service version close ignored", "reason", "unknown version")
		return schema.CloseVersionResponse{}, nil
	}
	closed := len(state.order)
	delete(s.versions, req.VersionID)
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Delete(req.VersionID); err != nil {
			log.Warn("service persist delete failed", "err", err)
		}
	}
	s.persistM.Unlock()

	s.emitTabEvent(schema.TabEvent{VersionID: req.VersionID, Type: schema.TabEventVersionClosed})
	log.Info("service version closed", "tabs", closed)
	return schema.CloseVersionResponse{Closed: closed}, nil
}

func (s *service) ApplyRemoteSave(ctx context.Context, req schema.RemoteSaveRequest) (schema.RemoteSaveResponse, error) {
	if err := schema.ValidateVersionID(req.VersionID); err != nil {
		return schema.RemoteSaveResponse{}, err
	}
	p, err := schema.NormalizeTabPath(req.Path)
	if err != nil {
		return schema.RemoteSaveResponse{}, err
	}
	log := logx.WithVersion(ctx, req.VersionID).With("path", p)
	readOnly := !req.CanEdit

	s.ensureLoaded(req.VersionID)
	s.mu.Lock()
	state := s.stateLocked(req.VersionID, false)
	var t *tab
	if state != nil {
		t = state.byPath(p)
	}
	if t == nil {
		s.mu.Unlock()
		log.Trace("service remote save ignored", "reason", "path not open")
		return schema.RemoteSaveResponse{}, nil
	}
	if t.IsDirty && req.CanEdit {
		snapshot := t.Snapshot(state.active == t.ID, readOnly)
		s.mu.Unlock()
		log.Info("service remote save kept local edits", "tab", snapshot.ID)
		return schema.RemoteSaveResponse{Tab: snapshot, Found: true}, nil
	}
	before := *t
	t.IsDirty = false
	if title := formatTitle(req.Title, s.cfg.TitleMax, s.cfg.TitleSuffix); title != "" {
		t.Title = title
	}
	changed := before != *t
	active := state.active
	snapshot := t.Snapshot(active == t.ID, readOnly)
	s.mu.Unlock()

	if changed {
		s.emitTabEvent(schema.TabEvent{
			VersionID: req.VersionID,
			Type:      schema.TabEventUpdated,
			Tab:       snapshot,
			ActiveTab: active,
		})
		s.persistVersion(log, req.VersionID)
	}
	log.Info("service remote save applied", "tab", snapshot.ID, "changed", changed)
	return schema.RemoteSaveResponse{Tab: snapshot, Found: true, Applied: true}, nil
}

// Versions lists the versions with a tab set in memory or in the persist backend.
func (s *service) Versions() []schema.VersionID {
	seen := make(map[schema.VersionID]struct{})
	s.mu.Lock()
	for id := range s.versions {
		seen[id] = struct{}{}
	}
	s.mu.Unlock()
	if s.store != nil {
		stored, err := s.store.Versions()
		if err != nil {
			s.logger.Warn("service persist list failed", "err", err)
		}
		for _, id := range stored {
			seen[id] = struct{}{}
		}
	}
	out := make([]schema.VersionID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *service) normalizeDraft(versionID schema.VersionID, draft schema.TabDraft) (schema.TabDraft, error) {
	if err := schema.ValidateVersionID(versionID); err != nil {
		return schema.TabDraft{}, err
	}
	p, err := schema.NormalizeTabPath(draft.Path)
	if err != nil {
		return schema.TabDraft{}, err
	}
	if strings.TrimSpace(string(draft.Type)) == "" && draft.IsDashboard {
		draft.Type = schema.TabTypeDashboard
	}
	tabType, err := schema.NormalizeTabType(draft.Type)
	if err != nil {
		return schema.TabDraft{}, err
	}
	title := draft.Title
	if strings.TrimSpace(title) == "" {
		title = defaultTitle(p)
	}
	return schema.TabDraft{
		Title:       formatTitle(title, s.cfg.TitleMax, s.cfg.TitleSuffix),
		Path:        p,
		Type:        tabType,
		IsDashboard: draft.IsDashboard || tabType == schema.TabTypeDashboard,
	}, nil
}

func (s *service) readOnly(ctx context.Context, versionID schema.VersionID) bool {
	if s.perms == nil {
		return false
	}
	return !s.perms.CanEditVersion(ctx, versionID, EditAction)
}

// stateLocked returns the in-memory tab set of a version. A missing set is
// created only when create is set. Callers run ensureLoaded first.
func (s *service) stateLocked(versionID schema.VersionID, create bool) *versionState {
	if state := s.versions[versionID]; state != nil {
		return state
	}
	if !create {
		return nil
	}
	state := newVersionState()
	s.versions[versionID] = state
	return state
}

// ensureLoaded installs the persisted tab set of versionID on first access.
// Backend reads run outside s.mu and under persistM, which orders them
// against saves and deletes.
func (s *service) ensureLoaded(versionID schema.VersionID) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	_, cached := s.versions[versionID]
	s.mu.Unlock()
	if cached {
		return
	}

	s.persistM.Lock()
	defer s.persistM.Unlock()
	s.mu.Lock()
	_, cached = s.versions[versionID]
	s.mu.Unlock()
	if cached {
		return
	}
	log := s.logger.With("version", versionID)
	snapshot, ok, err := s.store.Load(versionID)
	if err != nil {
		log.Warn("service state load failed", "err", err)
		return
	}
	if !ok {
		return
	}
	state := restoreVersionState(snapshot)
	s.mu.Lock()
	if s.versions[versionID] == nil {
		s.versions[versionID] = state
	}
	s.mu.Unlock()
	log.Debug("service state loaded", "tabs", len(state.order))
}

func (s *service) emitTabEvent(event schema.TabEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnTabEvent(event)
}

// persistVersion snapshots and saves under persistM so saves land in order.
func (s *service) persistVersion(log pslog.Logger, versionID schema.VersionID) {
	if s.store == nil {
		return
	}
	s.persistM.Lock()
	defer s.persistM.Unlock()
	s.mu.Lock()
	state := s.versions[versionID]
	if state == nil {
		s.mu.Unlock()
		log.Debug("service persist skipped", "reason", "missing state")
		return
	}
	snapshot := state.persisted()
	s.mu.Unlock()
	if err := s.store.Save(versionID, snapshot); err != nil {
		log.Warn("service persist failed", "err", err)
		return
	}
	log.Trace("service state persisted", "tabs", len(snapshot.Tabs))
}

func isPermutation(current, order []schema.TabID) bool {
	if len(current) != len(order) {
		return false
	}
	seen := make(map[schema.TabID]bool, len(current))
	for _, id := range current {
		seen[id] = false
	}
	for _, id := range order {
		used, ok := seen[id]
		if !ok || used {
			return false
		}
		seen[id] = true
	}
	return true
}
