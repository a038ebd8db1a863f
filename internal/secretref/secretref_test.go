package secretref

import (
	"strings"
	"testing"

	"github.com/catalystcommunity/reactorcide/internal/masker"
)

func TestParseFullMatch(t *testing.T) {
	ref, ok := Parse("${secret:deploy/prod:token}")
	if !ok {
		t.Fatalf("expected match")
	}
	if ref.Path != "deploy/prod" || ref.Key != "token" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestParseRejectsPartial(t *testing.T) {
	if _, ok := Parse("prefix ${secret:a:b} suffix"); ok {
		t.Fatalf("expected Parse to reject non-full-string match")
	}
}

func TestFindAllFindsMultiple(t *testing.T) {
	refs := FindAll("a=${secret:p1:k1} b=${secret:p2:k2}")
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d: %+v", len(refs), refs)
	}
	if refs[0].Path != "p1" || refs[1].Path != "p2" {
		t.Fatalf("unexpected refs: %+v", refs)
	}
}

func TestResolveInStringSubstitutes(t *testing.T) {
	getter := func(path, key string) (string, bool) {
		if path == "deploy" && key == "token" {
			return "secretvalue", true
		}
		return "", false
	}
	out, err := ResolveInString("token is ${secret:deploy:token}", getter, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "token is secretvalue" {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestResolveInStringMissingOKLeavesInPlace(t *testing.T) {
	getter := func(path, key string) (string, bool) { return "", false }
	out, err := ResolveInString("x=${secret:missing:key}", getter, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "x=${secret:missing:key}" {
		t.Fatalf("expected reference left in place, got %q", out)
	}
}

func TestResolveInStringMissingFailsWhenNotOK(t *testing.T) {
	getter := func(path, key string) (string, bool) { return "", false }
	if _, err := ResolveInString("x=${secret:missing:key}", getter, false); err == nil {
		t.Fatalf("expected ReferenceError when missingOK is false")
	}
}

func TestResolveInStringSameReferenceConsistent(t *testing.T) {
	calls := 0
	getter := func(path, key string) (string, bool) {
		calls++
		return "stable", true
	}
	out, err := ResolveInString("${secret:a:b} and ${secret:a:b}", getter, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "stable and stable" {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestResolveInMapRecursesNestedStructures(t *testing.T) {
	getter := func(path, key string) (string, bool) { return "resolved", true }
	in := map[string]any{
		"top": "${secret:p:k}",
		"nested": map[string]any{
			"inner": "${secret:p:k}",
		},
		"list": []any{"${secret:p:k}", 42},
	}
	out, err := ResolveInMap(in, getter, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["top"] != "resolved" {
		t.Fatalf("expected top resolved, got %v", out["top"])
	}
	nested := out["nested"].(map[string]any)
	if nested["inner"] != "resolved" {
		t.Fatalf("expected nested resolved, got %v", nested["inner"])
	}
	list := out["list"].([]any)
	if list[0] != "resolved" || list[1] != 42 {
		t.Fatalf("unexpected list: %v", list)
	}
}

func TestResolveInMapRegistersWithMasker(t *testing.T) {
	m := masker.New()
	getter := func(path, key string) (string, bool) { return "supersecretvalue", true }
	_, err := ResolveInMap(map[string]any{"k": "${secret:p:k}"}, getter, false, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Contains("supersecretvalue") {
		t.Fatalf("expected resolved value registered with masker")
	}
}

func TestResolveInMapRegistersEmbeddedValueNotWholeString(t *testing.T) {
	m := masker.New()
	getter := func(path, key string) (string, bool) { return "supersecretvalue", true }
	out, err := ResolveInMap(map[string]any{"k": "prefix-${secret:p:k}-suffix"}, getter, false, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["k"] != "prefix-supersecretvalue-suffix" {
		t.Fatalf("unexpected resolved value: %v", out["k"])
	}
	if !m.Contains("supersecretvalue") {
		t.Fatalf("expected the embedded secret value itself to be registered")
	}
	if m.Contains("prefix-supersecretvalue-suffix") {
		t.Fatalf("expected the concatenated string not to be registered as a secret")
	}
	if !strings.Contains(m.Mask("supersecretvalue appears bare elsewhere"), "[REDACTED]") {
		t.Fatalf("expected bare occurrence of the embedded secret to be masked")
	}
}

func TestResolveEnvMap(t *testing.T) {
	getter := func(path, key string) (string, bool) { return "val", true }
	out, err := ResolveEnvMap(map[string]string{"FOO": "${secret:p:k}", "BAR": "plain"}, getter, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["FOO"] != "val" || out["BAR"] != "plain" {
		t.Fatalf("unexpected result: %v", out)
	}
}
