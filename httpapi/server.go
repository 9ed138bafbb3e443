package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"pkt.systems/pslog"
	"pkt.systems/studiosync/core"
	"pkt.systems/studiosync/internal/authtoken"
	"pkt.systems/studiosync/internal/eventbus"
	"pkt.systems/studiosync/internal/logx"
	"pkt.systems/studiosync/internal/realtime"
	"pkt.systems/studiosync/internal/store"
	"pkt.systems/studiosync/schema"
)

const (
	defaultMaxEnvelopeBytes = 1 << 20
	accessTokenParam        = "access_token"
	wsWriteTimeout          = 10 * time.Second
	wsPingPeriod            = 30 * time.Second
)

// Permissions evaluates scope and version permissions for the current subject.
type Permissions interface {
	Can(ctx context.Context, scope schema.ScopeType, action schema.ActionKey) bool
	CanEditVersion(ctx context.Context, versionID schema.VersionID, action schema.ActionKey) bool
}

// Dispatcher applies realtime envelopes.
type Dispatcher interface {
	Dispatch(ctx context.Context, env schema.Envelope) realtime.Result
	DispatchFrame(ctx context.Context, frame []byte) realtime.Result
}

// Watcher exposes the store observer bus.
type Watcher interface {
	Subscribe(topics ...schema.StoreName) (<-chan eventbus.Event, func())
}

// TokenValidator validates bearer access tokens.
type TokenValidator interface {
	Validate(raw string) (authtoken.Subject, error)
}

// Deps wires the server to the rest of the daemon. Service, Stores and Hub
// are required; routes backed by a nil optional dependency are not mounted.
type Deps struct {
	Service     core.Service
	Stores      *store.Set
	Hub         *Hub
	Permissions Permissions
	Dispatcher  Dispatcher
	Bus         Watcher
	// Tokens guards /api when set and backs /validate.
	Tokens     TokenValidator
	Gatherer   prometheus.Gatherer
	Registerer prometheus.Registerer
	Release    string
}

// Server serves the HTTP API.
type Server struct {
	cfg      Config
	deps     Deps
	basePath string
	upgrader websocket.Upgrader
	requests *prometheus.CounterVec
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Service == nil || deps.Stores == nil || deps.Hub == nil {
		return nil, fmt.Errorf("httpapi: service, stores and hub are required: %w", schema.ErrInvalidRequest)
	}
	if cfg.MaxEnvelopeBytes <= 0 {
		cfg.MaxEnvelopeBytes = defaultMaxEnvelopeBytes
	}
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		basePath: normalizeBasePath(cfg.BasePath),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studiosync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(cfg.BaseURL, r.Header.Get("Origin"))
		},
	}
	if deps.Registerer != nil {
		if err := deps.Registerer.Register(s.requests); err != nil {
			return nil, fmt.Errorf("httpapi metrics: %w", err)
		}
	}
	return s, nil
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	svc := s.deps.Service
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/validate", s.handleValidate)
	if s.deps.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/api/tabs", s.requireSubject(s.handleTabs(command(s, "tabs open", svc.OpenTab))))
	mux.HandleFunc("/api/tabs/navigate", s.requireSubject(command(s, "tabs navigate", svc.NavigateTo)))
	mux.HandleFunc("/api/tabs/update", s.requireSubject(command(s, "tabs update", svc.UpdateTab)))
	mux.HandleFunc("/api/tabs/close", s.requireSubject(command(s, "tabs close", svc.CloseTab)))
	mux.HandleFunc("/api/tabs/activate", s.requireSubject(command(s, "tabs activate", svc.ActivateTab)))
	mux.HandleFunc("/api/tabs/reorder", s.requireSubject(command(s, "tabs reorder", svc.ReorderTabs)))
	mux.HandleFunc("/api/tabs/current", s.requireSubject(s.handleCurrentTab))
	mux.HandleFunc("/api/versions/close", s.requireSubject(command(s, "version close", svc.CloseVersion)))
	mux.HandleFunc("/api/state", s.requireSubject(s.handleState))
	mux.HandleFunc("/api/stream", s.requireSubject(s.handleStream))
	if s.deps.Permissions != nil {
		mux.HandleFunc("/api/permissions", s.requireSubject(s.handlePermissions))
	}
	if s.deps.Dispatcher != nil {
		mux.HandleFunc("/api/events", s.requireSubject(s.handleEvents))
		mux.HandleFunc("/api/realtime", s.requireSubject(s.handleRealtime))
	}
	if s.deps.Bus != nil {
		mux.HandleFunc("/api/watch", s.requireSubject(s.handleWatch))
	}

	var handler http.Handler = promhttp.InstrumentHandlerCounter(s.requests, mux)
	handler = withRequestLogging(handler, s.lookupSubject)
	return mountBasePath(s.basePath, handler)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "%s ok %s\n", time.Now().UTC().Format(time.RFC3339), s.release())
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "pong %s\n", time.Now().UTC().Format(time.RFC3339))
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tokens == nil {
		writeError(w, http.StatusNotFound, errors.New("token validation is not configured"))
		return
	}
	subject, err := s.deps.Tokens.Validate(requestToken(r))
	if err != nil {
		logx.Ctx(r.Context()).Debug("http validate rejected", "err", err)
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	payload := map[string]any{"user": subject.User}
	if !subject.ExpiresAt.IsZero() {
		payload["expires_at"] = subject.ExpiresAt.UTC()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleTabs(open http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			log := logx.Ctx(r.Context())
			versionID := schema.VersionID(r.URL.Query().Get("version"))
			resp, err := s.deps.Service.ListTabs(r.Context(), schema.ListTabsRequest{VersionID: versionID})
			if err != nil {
				log.Warn("http tabs list failed", "err", err)
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, resp.Set)
			log.Debug("http tabs list ok", "version", versionID, "count", len(resp.Set.Tabs))
		case http.MethodPost:
			open(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleCurrentTab(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	versionID := schema.VersionID(r.URL.Query().Get("version"))
	resp, err := s.deps.Service.GetCurrentTab(r.Context(), schema.GetCurrentTabRequest{VersionID: versionID})
	if err != nil {
		logx.Ctx(r.Context()).Warn("http tabs current failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatePayload is the full store snapshot served by /api/state and sent as
// the first stream event.
type StatePayload struct {
	Revisions map[schema.StoreName]uint64 `json:"revisions"`
	Stores    map[schema.StoreName]any    `json:"stores"`
	Tabs      []schema.TabSet             `json:"tabs"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.buildState(r.Context()))
}

func (s *Server) buildState(ctx context.Context) StatePayload {
	state := StatePayload{
		Revisions: s.deps.Stores.Revisions(),
		Stores:    s.deps.Stores.Snapshot(),
		Tabs:      []schema.TabSet{},
	}
	for _, versionID := range s.deps.Service.Versions() {
		resp, err := s.deps.Service.ListTabs(ctx, schema.ListTabsRequest{VersionID: versionID})
		if err != nil {
			logx.WithVersion(ctx, versionID).Warn("http state tabs failed", "err", err)
			continue
		}
		state.Tabs = append(state.Tabs, resp.Set)
	}
	return state
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	scope := schema.ScopeType(query.Get("scope"))
	action := schema.ActionKey(query.Get("action"))
	versionID := schema.VersionID(query.Get("version"))
	if action == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: action is required", schema.ErrInvalidRequest))
		return
	}
	var allowed bool
	switch scope {
	case schema.ScopeVersion:
		allowed = s.deps.Permissions.CanEditVersion(r.Context(), versionID, action)
	case schema.ScopeApp, schema.ScopeOrg, schema.ScopeProject:
		allowed = s.deps.Permissions.Can(r.Context(), scope, action)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown scope %q", schema.ErrInvalidRequest, scope))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":   scope,
		"action":  action,
		"version": versionID,
		"allowed": allowed,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var env schema.Envelope
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, s.cfg.MaxEnvelopeBytes), &env); err != nil {
		log.Warn("http events decode failed", "err", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", schema.ErrInvalidEnvelope, err))
		return
	}
	result := s.deps.Dispatcher.Dispatch(r.Context(), env)
	status := http.StatusOK
	if result == realtime.ResultRejected {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]any{"result": result})
	logx.WithEnvelope(log, env).Debug("http events dispatched", "result", result)
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("http realtime upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.cfg.MaxEnvelopeBytes)
	stop := closeOnDone(r.Context(), conn)
	defer stop()

	log.Info("http realtime ingress opened")
	counts := make(map[realtime.Result]int)
	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && r.Context().Err() == nil {
				log.Debug("http realtime read ended", "err", err)
			}
			break
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		counts[s.deps.Dispatcher.DispatchFrame(r.Context(), frame)]++
	}
	log.Info("http realtime ingress closed",
		"applied", counts[realtime.ResultApplied],
		"unknown", counts[realtime.ResultUnknown],
		"rejected", counts[realtime.ResultRejected])
}

// WatchEvent is one observer bus event as sent to /api/watch clients.
type WatchEvent struct {
	Type      eventbus.EventType  `json:"type"`
	Topic     schema.StoreName    `json:"topic"`
	Revision  uint64              `json:"revision,omitempty"`
	State     any                 `json:"state,omitempty"`
	TabEvent  schema.TabEventType `json:"tab_event,omitempty"`
	VersionID schema.VersionID    `json:"version_id,omitempty"`
	Tab       *schema.Tab         `json:"tab,omitempty"`
	ActiveTab schema.TabID        `json:"active_tab,omitempty"`
	Path      string              `json:"path,omitempty"`
}

func newWatchEvent(event eventbus.Event) WatchEvent {
	out := WatchEvent{Type: event.Type, Topic: event.Topic}
	switch event.Type {
	case eventbus.EventStore:
		out.Revision = event.Store.Revision
		out.State = event.Store.State
	case eventbus.EventTab:
		out.TabEvent = event.Tab.Type
		out.VersionID = event.Tab.VersionID
		out.ActiveTab = event.Tab.ActiveTab
		out.Path = event.Tab.Path
		if event.Tab.Tab.ID != "" {
			tab := event.Tab.Tab
			out.Tab = &tab
		}
	}
	return out
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	var topics []schema.StoreName
	for _, topic := range r.URL.Query()["topic"] {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, schema.StoreName(topic))
		}
	}
	events, cancel := s.deps.Bus.Subscribe(topics...)
	defer cancel()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("http watch upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close and pong control messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	log.Info("http watch opened", "topics", len(topics))
	sent := 0
	for {
		select {
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(wsWriteTimeout))
			log.Info("http watch closed", "sent", sent)
			return
		case <-done:
			log.Info("http watch closed", "sent", sent)
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				log.Debug("http watch ping failed", "err", err)
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(newWatchEvent(event)); err != nil {
				log.Debug("http watch write failed", "err", err)
				return
			}
			sent++
		}
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))

	// Subscribe before replaying so no event falls between the two.
	ch, unsubscribe, seq, _ := s.deps.Hub.Subscribe()
	defer unsubscribe()

	state := s.buildState(r.Context())
	_ = writeSSEvent(w, StreamEvent{
		Type:      "snapshot",
		State:     state,
		Timestamp: time.Now(),
	})

	written := seq
	replayCount := 0
	if lastID > 0 && lastID < seq {
		for _, event := range s.deps.Hub.Replay(lastID) {
			if event.Seq > seq {
				break
			}
			_ = writeSSEvent(w, event)
			replayCount++
		}
	}
	flusher.Flush()

	log.Info("http stream opened", "last_id", lastID, "replay", replayCount, "tabs", len(state.Tabs))
	for {
		select {
		case <-r.Context().Done():
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Seq <= written {
				continue
			}
			written = event.Seq
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

// requireSubject validates the bearer token when a validator is configured
// and claims the auth store for the token subject. Tokens for any other
// user are refused while a subject is signed in.
func (s *Server) requireSubject(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Ctx(r.Context()).With("remote", clientIP(r))
		if s.deps.Tokens != nil {
			subject, err := s.deps.Tokens.Validate(requestToken(r))
			if err != nil {
				log.Warn("http token rejected", "err", err)
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			changed, err := s.deps.Stores.Auth.Claim(subject.User, subject.Email, subject.Name)
			if err != nil {
				log.Warn("http subject rejected", "user", subject.User, "signed_in", s.deps.Stores.Auth.User(), "err", err)
				writeError(w, statusFor(err), err)
				return
			}
			if changed {
				log.Info("http subject signed in", "user", subject.User)
			}
		}
		log = logx.WithUser(log, s.deps.Stores.Auth.User())
		next(w, r.WithContext(pslog.ContextWithLogger(r.Context(), log)))
	}
}

func (s *Server) lookupSubject(*http.Request) schema.UserID {
	return s.deps.Stores.Auth.User()
}

func (s *Server) release() string {
	if s.deps.Release == "" {
		return "dev"
	}
	return s.deps.Release
}

// command adapts a JSON POST body to a service call.
func command[Req, Resp any](s *Server, name string, call func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		log := logx.Ctx(r.Context())
		var req Req
		if err := decodeJSON(http.MaxBytesReader(w, r.Body, s.cfg.MaxEnvelopeBytes), &req); err != nil {
			log.Warn("http "+name+" decode failed", "err", err)
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err))
			return
		}
		ctx := r.Context()
		if scoped, ok := any(req).(schema.Scoped); ok {
			versionID, tabID := scoped.Scope()
			log = logx.WithVersionTab(ctx, versionID, tabID)
			ctx = logx.ContextWithVersionTabLogger(ctx, log, versionID, tabID)
		}
		resp, err := call(ctx, req)
		if err != nil {
			log.Warn("http "+name+" failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Debug("http " + name + " ok")
	}
}

// closeOnDone closes conn when ctx ends. The returned func releases the watcher.
func closeOnDone(ctx context.Context, conn *websocket.Conn) func() {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	return func() { close(stop) }
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, schema.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrInvalidVersion),
		errors.Is(err, schema.ErrInvalidPath),
		errors.Is(err, schema.ErrInvalidTabType),
		errors.Is(err, schema.ErrInvalidOrder),
		errors.Is(err, schema.ErrInvalidEnvelope):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// requestToken reads the bearer header, falling back to the access_token
// query parameter used by EventSource and websocket clients.
func requestToken(r *http.Request) string {
	if token, ok := authtoken.BearerToken(r); ok {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get(accessTokenParam))
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
