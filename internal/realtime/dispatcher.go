// Package realtime routes push-style envelopes from the collaboration/build
// service to the single store that owns each action.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/core"
	"pkt.systems/studiosync/internal/logx"
	"pkt.systems/studiosync/internal/store"
	"pkt.systems/studiosync/internal/typings"
	"pkt.systems/studiosync/schema"
)

// Result reports what a dispatch did.
type Result string

const (
	// ResultApplied means the envelope was handed to its store.
	ResultApplied Result = "applied"
	// ResultUnknown means no handler is registered for the action.
	ResultUnknown Result = "unknown"
	// ResultRejected means the envelope was malformed for its action.
	ResultRejected Result = "rejected"
)

// unknownLabel keeps metric cardinality bounded for unrecognized actions.
const unknownLabel = "other"

// RemoteSaver applies remote saves to open tabs.
type RemoteSaver interface {
	ApplyRemoteSave(ctx context.Context, req schema.RemoteSaveRequest) (schema.RemoteSaveResponse, error)
}

// EditChecker reports whether the subject may edit a version.
type EditChecker interface {
	CanEditVersion(ctx context.Context, versionID schema.VersionID, action schema.ActionKey) bool
}

// Config wires the dispatcher to its target stores.
type Config struct {
	Stores      *store.Set
	Typings     *typings.Injector
	Tabs        RemoteSaver
	Permissions EditChecker
	Metrics     *Metrics
}

// Dispatcher applies envelopes one at a time in arrival order.
type Dispatcher struct {
	cfg Config
	mu  sync.Mutex
}

// New builds a Dispatcher. Stores is required; a missing Typings injector
// merges into the typings store without editor registration.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Stores == nil {
		return nil, fmt.Errorf("realtime dispatcher: %w", schema.ErrInvalidRequest)
	}
	if cfg.Typings == nil {
		cfg.Typings = typings.NewInjector(cfg.Stores.Typings, nil)
	}
	return &Dispatcher{cfg: cfg}, nil
}

// DispatchFrame decodes one transport frame and dispatches it.
func (d *Dispatcher) DispatchFrame(ctx context.Context, frame []byte) Result {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		pslog.Ctx(ctx).Warn("realtime frame rejected", "err", err, "bytes", len(frame))
		d.cfg.Metrics.observe(unknownLabel, ResultRejected, 0)
		return ResultRejected
	}
	return d.Dispatch(ctx, env)
}

// Dispatch applies env to the store registered for its action. Unknown
// actions and malformed data leave every store unchanged; Dispatch never
// fails the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, env schema.Envelope) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	log := logx.WithEnvelope(pslog.Ctx(ctx), env)
	label := string(env.Action)
	var err error
	switch env.Action {
	case schema.ActionTypings:
		err = d.applyTypings(ctx, env)
	case schema.ActionEnvironmentStatus:
		err = d.applyEnvironmentStatus(env)
	case schema.ActionDeploymentState:
		err = d.applyDeploymentState(env)
	case schema.ActionVersionUpdated:
		err = d.applyVersionUpdated(env)
	case schema.ActionDocumentSaved:
		err = d.applyDocumentSaved(ctx, env)
	default:
		log.Debug("realtime envelope ignored", "err", schema.ErrUnknownAction)
		d.cfg.Metrics.observe(unknownLabel, ResultUnknown, time.Since(start).Seconds())
		return ResultUnknown
	}
	if err != nil {
		log.Warn("realtime envelope rejected", "err", err)
		d.cfg.Metrics.observe(label, ResultRejected, time.Since(start).Seconds())
		return ResultRejected
	}
	log.Trace("realtime envelope applied")
	d.cfg.Metrics.observe(label, ResultApplied, time.Since(start).Seconds())
	return ResultApplied
}

func (d *Dispatcher) applyTypings(ctx context.Context, env schema.Envelope) error {
	var data schema.TypingsData
	if err := decodeData(env, &data); err != nil {
		return err
	}
	d.cfg.Typings.Merge(ctx, data)
	return nil
}

func (d *Dispatcher) applyEnvironmentStatus(env schema.Envelope) error {
	if env.Identifier == "" {
		return fmt.Errorf("%w: missing environment identifier", schema.ErrInvalidEnvelope)
	}
	var data schema.EnvironmentStatusData
	if err := decodeData(env, &data); err != nil {
		return err
	}
	d.cfg.Stores.Environment.ApplyStatus(schema.EnvironmentID(env.Identifier), data)
	return nil
}

func (d *Dispatcher) applyDeploymentState(env schema.Envelope) error {
	versionID, err := envelopeVersion(env)
	if err != nil {
		return err
	}
	var data schema.DeploymentStateData
	if err := decodeData(env, &data); err != nil {
		return err
	}
	d.cfg.Stores.Version.ApplyDeployment(versionID, data)
	return nil
}

func (d *Dispatcher) applyVersionUpdated(env schema.Envelope) error {
	versionID, err := envelopeVersion(env)
	if err != nil {
		return err
	}
	var data schema.VersionUpdatedData
	if err := decodeData(env, &data); err != nil {
		return err
	}
	d.cfg.Stores.Version.ApplyUpdate(versionID, data)
	return nil
}

func (d *Dispatcher) applyDocumentSaved(ctx context.Context, env schema.Envelope) error {
	versionID, err := envelopeVersion(env)
	if err != nil {
		return err
	}
	var data schema.DocumentSavedData
	if err := decodeData(env, &data); err != nil {
		return err
	}
	if d.cfg.Tabs == nil {
		return nil
	}
	canEdit := true
	if d.cfg.Permissions != nil {
		canEdit = d.cfg.Permissions.CanEditVersion(ctx, versionID, core.EditAction)
	}
	_, err = d.cfg.Tabs.ApplyRemoteSave(ctx, schema.RemoteSaveRequest{
		VersionID: versionID,
		Path:      data.Path,
		Title:     data.Title,
		CanEdit:   canEdit,
	})
	return err
}

// DecodeEnvelope parses one JSON envelope. An envelope without an action is invalid.
func DecodeEnvelope(frame []byte) (schema.Envelope, error) {
	var env schema.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return schema.Envelope{}, fmt.Errorf("%w: %v", schema.ErrInvalidEnvelope, err)
	}
	if env.Action == "" {
		return schema.Envelope{}, fmt.Errorf("%w: missing action", schema.ErrInvalidEnvelope)
	}
	return env, nil
}

func envelopeVersion(env schema.Envelope) (schema.VersionID, error) {
	versionID := schema.VersionID(env.Identifier)
	if err := schema.ValidateVersionID(versionID); err != nil {
		return "", fmt.Errorf("%w: %w", schema.ErrInvalidEnvelope, err)
	}
	return versionID, nil
}

func decodeData(env schema.Envelope, out any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", schema.ErrInvalidEnvelope)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrInvalidEnvelope, err)
	}
	return nil
}
