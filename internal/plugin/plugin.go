// Package plugin implements the lifecycle plugin manager (C6): named
// extension units dispatched on named phases, ordered by priority, with
// failures routed through on_error before the failing phase's error
// propagates.
//
// The source's duck-typed "generic execute plus optional phase hooks" is
// modeled per §9 as a capability interface with one mandatory method
// (Execute) and a declared set of supported phases; the phase hooks
// collapse into one optional PhaseHooks interface (a single PhaseHook
// method receiving the phase) that a plugin implements only if it wants
// a phase-specific entry point, while embedding Base supplies the
// Name/Priority/Enabled/SupportedPhases methods — the same
// optional-override idiom the teacher uses for its docker mount
// plan builders (functions that no-op on empty input rather than
// requiring every caller to populate every field).
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/catalystcommunity/reactorcide/internal/config"
	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/logging"
)

// Phase is a named point in the run lifecycle at which plugins may act.
type Phase string

const (
	PhasePreValidation   Phase = "pre_validation"
	PhasePostValidation  Phase = "post_validation"
	PhasePreSourcePrep   Phase = "pre_source_prep"
	PhasePostSourcePrep  Phase = "post_source_prep"
	PhasePreContainer    Phase = "pre_container"
	PhasePostContainer   Phase = "post_container"
	PhaseOnError         Phase = "on_error"
	PhaseCleanup         Phase = "cleanup"
)

// Order is the total phase order named in §4.6 (on_error only runs on
// failure; cleanup always runs).
var Order = []Phase{
	PhasePreValidation, PhasePostValidation,
	PhasePreSourcePrep, PhasePostSourcePrep,
	PhasePreContainer, PhasePostContainer,
	PhaseOnError, PhaseCleanup,
}

// Context is passed through the lifecycle by reference, mutated only by
// the orchestrator between phases; the Metadata map is the sole channel
// plugins use to communicate across phases (§3).
type Context struct {
	Descriptor  *config.JobDescriptor
	CurrentPhase Phase
	JobPath     string
	EnvVars     map[string]string
	ExitCode    int
	Err         error
	Metadata    map[string]any
}

func NewContext(d *config.JobDescriptor) *Context {
	return &Context{Descriptor: d, EnvVars: map[string]string{}, Metadata: map[string]any{}}
}

// Plugin is the capability interface every lifecycle extension satisfies.
type Plugin interface {
	Name() string
	Priority() int
	Enabled() bool
	SupportedPhases() []Phase
	Execute(ctx *Context) error
}

// PhaseHooks is implemented optionally by a Plugin that wants a
// phase-specific entry point in addition to the generic Execute.
type PhaseHooks interface {
	PhaseHook(phase Phase, ctx *Context) error
}

// Base gives plugin authors sane Priority/Enabled defaults to embed.
type Base struct {
	PluginName   string
	PriorityVal  int
	EnabledVal   bool
	Phases       []Phase
}

func (b Base) Name() string            { return b.PluginName }
func (b Base) Priority() int           { if b.PriorityVal == 0 { return 100 }; return b.PriorityVal }
func (b Base) Enabled() bool           { return b.EnabledVal }
func (b Base) SupportedPhases() []Phase { return b.Phases }

// record pairs a Plugin with its registration order, needed to break
// priority ties stably (§3's "stable by priority then registration
// order").
type record struct {
	plugin Plugin
	seq    int
}

// Manager is run-scoped (§9: the source's global manager collapses into a
// per-run object threaded through the orchestrator).
type Manager struct {
	log     *logging.Logger
	records map[string]*record
	order   []string // registration order of names, for stable iteration
	seq     int
}

func NewManager(log *logging.Logger) *Manager {
	return &Manager{log: log.Named("plugin"), records: map[string]*record{}}
}

// Register adds or replaces a plugin by name (duplicates replace, not
// append, per §4.6).
func (m *Manager) Register(p Plugin) {
	if _, exists := m.records[p.Name()]; !exists {
		m.order = append(m.order, p.Name())
	}
	m.records[p.Name()] = &record{plugin: p, seq: m.seq}
	m.seq++
}

// LoadDir enumerates plugin_*.<ext> files in dir (sorted for determinism)
// and registers any in-process plugin factory registered for that
// extension via RegisterFactory. This models the source's dynamic module
// loading without requiring a real Go plugin-loader (cgo-only, absent on
// many platforms) — the extension point is the same, only the loading
// mechanism is simplified to factories keyed by file extension.
func (m *Manager) LoadDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.KindPlugin, "reading plugin directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "plugin_") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		factory, ok := factories[ext]
		if !ok {
			m.log.Warn("no loader for plugin file extension", "file", name, "ext", ext)
			continue
		}
		p, err := factory(filepath.Join(dir, name))
		if err != nil {
			return errs.Wrap(errs.KindPlugin, fmt.Sprintf("loading plugin %s", name), err)
		}
		m.Register(p)
	}
	return nil
}

// Factory constructs a Plugin from a file path.
type Factory func(path string) (Plugin, error)

var factories = map[string]Factory{}

// RegisterFactory registers a loader for plugin_*.<ext> files. Called from
// plugin-extension packages' init() functions.
func RegisterFactory(ext string, f Factory) { factories[ext] = f }

// enabledOrdered returns enabled plugins supporting phase, ordered by
// (priority, registration order).
func (m *Manager) enabledOrdered(phase Phase) []*record {
	var out []*record
	for _, name := range m.order {
		r := m.records[name]
		if !r.plugin.Enabled() {
			continue
		}
		for _, p := range r.plugin.SupportedPhases() {
			if p == phase {
				out = append(out, r)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].plugin.Priority(), out[j].plugin.Priority()
		if pi != pj {
			return pi < pj
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Dispatch runs every enabled plugin supporting phase, in order. For each,
// both the generic Execute and a matching PhaseHook (if implemented) run,
// in that order (§4.6). If a plugin fails: log at error, and if phase is
// not on_error, dispatch on_error to the remaining plugins bearing the
// failure in ctx.Err, then return the original error (§4.6's "rethrow").
func (m *Manager) Dispatch(phase Phase, ctx *Context) error {
	ctx.CurrentPhase = phase
	plugins := m.enabledOrdered(phase)
	for i, r := range plugins {
		if err := runOne(r.plugin, ctx); err != nil {
			m.log.Error("plugin failed", err, "plugin", r.plugin.Name(), "phase", string(phase))
			if phase != PhaseOnError {
				ctx.Err = err
				remaining := plugins[i+1:]
				m.dispatchOnErrorTo(remaining, ctx)
			}
			return errs.Wrap(errs.KindPlugin, fmt.Sprintf("plugin %s failed in phase %s", r.plugin.Name(), phase), err)
		}
	}
	return nil
}

func (m *Manager) dispatchOnErrorTo(records []*record, ctx *Context) {
	saved := ctx.CurrentPhase
	ctx.CurrentPhase = PhaseOnError
	defer func() { ctx.CurrentPhase = saved }()
	for _, r := range records {
		supports := false
		for _, p := range r.plugin.SupportedPhases() {
			if p == PhaseOnError {
				supports = true
				break
			}
		}
		if !supports {
			continue
		}
		if err := runOne(r.plugin, ctx); err != nil {
			m.log.Error("on_error plugin failed", err, "plugin", r.plugin.Name())
		}
	}
}

func runOne(p Plugin, ctx *Context) error {
	if err := p.Execute(ctx); err != nil {
		return err
	}
	if hooks, ok := p.(PhaseHooks); ok {
		if err := hooks.PhaseHook(ctx.CurrentPhase, ctx); err != nil {
			return err
		}
	}
	return nil
}

// Names returns registered plugin names in registration order, for
// observability/testing.
func (m *Manager) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
