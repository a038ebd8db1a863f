package plugin

import (
	"errors"
	"testing"

	"github.com/catalystcommunity/reactorcide/internal/logging"
)

type recordingPlugin struct {
	Base
	calls   *[]string
	failOn  Phase
	failErr error
}

func (p *recordingPlugin) Execute(ctx *Context) error {
	*p.calls = append(*p.calls, p.Name()+":"+string(ctx.CurrentPhase))
	if p.failOn != "" && ctx.CurrentPhase == p.failOn {
		return p.failErr
	}
	return nil
}

func newPlugin(name string, priority int, phases []Phase, calls *[]string) *recordingPlugin {
	return &recordingPlugin{
		Base: Base{PluginName: name, PriorityVal: priority, EnabledVal: true, Phases: phases},
		calls: calls,
	}
}

func TestDispatchOrdersByPriorityThenRegistration(t *testing.T) {
	var calls []string
	mgr := NewManager(logging.New())
	mgr.Register(newPlugin("second", 50, []Phase{PhasePreValidation}, &calls))
	mgr.Register(newPlugin("first", 10, []Phase{PhasePreValidation}, &calls))
	mgr.Register(newPlugin("third-same-priority-a", 50, []Phase{PhasePreValidation}, &calls))

	ctx := NewContext(nil)
	if err := mgr.Dispatch(PhasePreValidation, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"first:pre_validation", "second:pre_validation", "third-same-priority-a:pre_validation"}
	if len(calls) != len(want) {
		t.Fatalf("unexpected calls: %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("unexpected order at %d: got %v want %v", i, calls, want)
		}
	}
}

func TestDuplicateNameReplacesNotAppends(t *testing.T) {
	var calls []string
	mgr := NewManager(logging.New())
	mgr.Register(newPlugin("dup", 10, []Phase{PhasePreValidation}, &calls))
	mgr.Register(newPlugin("dup", 20, []Phase{PhasePreValidation}, &calls))

	if len(mgr.Names()) != 1 {
		t.Fatalf("expected single registration, got %v", mgr.Names())
	}
	ctx := NewContext(nil)
	if err := mgr.Dispatch(PhasePreValidation, ctx); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one call (replaced, not appended), got %v", calls)
	}
}

func TestDisabledPluginSkipped(t *testing.T) {
	var calls []string
	mgr := NewManager(logging.New())
	p := newPlugin("disabled", 10, []Phase{PhasePreValidation}, &calls)
	p.EnabledVal = false
	mgr.Register(p)

	ctx := NewContext(nil)
	if err := mgr.Dispatch(PhasePreValidation, ctx); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 0 {
		t.Fatalf("expected disabled plugin not dispatched, got %v", calls)
	}
}

func TestFailingPluginDispatchesOnErrorToRemaining(t *testing.T) {
	var calls []string
	mgr := NewManager(logging.New())
	failing := newPlugin("failing", 10, []Phase{PhasePreValidation, PhaseOnError}, &calls)
	failing.failOn = PhasePreValidation
	failing.failErr = errors.New("boom")
	cleanupAware := newPlugin("cleanup-aware", 20, []Phase{PhasePreValidation, PhaseOnError}, &calls)

	mgr.Register(failing)
	mgr.Register(cleanupAware)

	ctx := NewContext(nil)
	err := mgr.Dispatch(PhasePreValidation, ctx)
	if err == nil {
		t.Fatalf("expected dispatch to return the plugin's error")
	}
	found := false
	for _, c := range calls {
		if c == "cleanup-aware:on_error" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected remaining plugin to receive on_error dispatch, got %v", calls)
	}
	if ctx.Err == nil {
		t.Fatalf("expected ctx.Err set for on_error dispatch")
	}
}

func TestOnErrorItselfFailingDoesNotRecurse(t *testing.T) {
	var calls []string
	mgr := NewManager(logging.New())
	p := newPlugin("always-fails", 10, []Phase{PhaseOnError}, &calls)
	p.failOn = PhaseOnError
	p.failErr = errors.New("boom again")
	mgr.Register(p)

	ctx := NewContext(nil)
	err := mgr.Dispatch(PhaseOnError, ctx)
	if err == nil {
		t.Fatalf("expected error propagated from on_error dispatch itself")
	}
}

type hookPlugin struct {
	Base
	calls *[]string
}

func (h *hookPlugin) Execute(ctx *Context) error {
	*h.calls = append(*h.calls, "execute")
	return nil
}

func (h *hookPlugin) PhaseHook(phase Phase, ctx *Context) error {
	*h.calls = append(*h.calls, "hook:"+string(phase))
	return nil
}

func TestGenericExecuteThenPhaseHook(t *testing.T) {
	var calls []string
	mgr := NewManager(logging.New())
	mgr.Register(&hookPlugin{Base: Base{PluginName: "hooked", EnabledVal: true, Phases: []Phase{PhasePreContainer}}, calls: &calls})

	ctx := NewContext(nil)
	if err := mgr.Dispatch(PhasePreContainer, ctx); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 || calls[0] != "execute" || calls[1] != "hook:pre_container" {
		t.Fatalf("expected execute then phase hook, got %v", calls)
	}
}

func TestLoadDirMissingDirectoryIsNoop(t *testing.T) {
	mgr := NewManager(logging.New())
	if err := mgr.LoadDir(""); err != nil {
		t.Fatalf("unexpected error for empty dir: %v", err)
	}
	if err := mgr.LoadDir("/nonexistent/path/for/test"); err != nil {
		t.Fatalf("unexpected error for missing dir: %v", err)
	}
}
