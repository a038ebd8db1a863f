// Package secretref implements the secret-reference resolver (C4):
// ${secret:PATH:KEY} parsing and substitution against a pluggable getter.
package secretref

import (
	"regexp"

	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/masker"
)

// Ref is a parsed ${secret:PATH:KEY} reference.
type Ref struct {
	Path string
	Key  string
}

var (
	fullPattern  = regexp.MustCompile(`^\$\{secret:([A-Za-z0-9/_-]+):([A-Za-z0-9_-]+)\}$`)
	findPattern  = regexp.MustCompile(`\$\{secret:([A-Za-z0-9/_-]+):([A-Za-z0-9_-]+)\}`)
)

// Getter resolves (path, key) to a value, or (ok=false) if absent.
type Getter func(path, key string) (string, bool)

// Parse matches s as a full-string ${secret:PATH:KEY} reference.
func Parse(s string) (Ref, bool) {
	m := fullPattern.FindStringSubmatch(s)
	if m == nil {
		return Ref{}, false
	}
	return Ref{Path: m[1], Key: m[2]}, true
}

// FindAll returns every ${secret:PATH:KEY} reference occurring anywhere in
// text (not just a full-string match).
func FindAll(text string) []Ref {
	matches := findPattern.FindAllStringSubmatch(text, -1)
	out := make([]Ref, 0, len(matches))
	for _, m := range matches {
		out = append(out, Ref{Path: m[1], Key: m[2]})
	}
	return out
}

// ResolveInString replaces every ${secret:PATH:KEY} occurrence in text via
// getter. A missing reference is left in place if missingOK, otherwise
// ResolveInString returns a ReferenceError.
func ResolveInString(text string, getter Getter, missingOK bool) (string, error) {
	var outerErr error
	result := findPattern.ReplaceAllStringFunc(text, func(match string) string {
		if outerErr != nil {
			return match
		}
		ref, _ := Parse(match)
		val, ok := getter(ref.Path, ref.Key)
		if !ok {
			if missingOK {
				return match
			}
			outerErr = errs.Newf(errs.KindReference, "secret not found: %s:%s", ref.Path, ref.Key)
			return match
		}
		return val
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

// resolveStringRegistering is ResolveInString plus registering each
// individually-substituted value with mask, rather than the fully
// concatenated result — so a secret embedded in a larger string (e.g.
// "pre${secret:a:b}post") is still masked wherever it appears on its own
// elsewhere in output (§4.4).
func resolveStringRegistering(text string, getter Getter, missingOK bool, mask *masker.Masker) (string, error) {
	var outerErr error
	result := findPattern.ReplaceAllStringFunc(text, func(match string) string {
		if outerErr != nil {
			return match
		}
		ref, _ := Parse(match)
		val, ok := getter(ref.Path, ref.Key)
		if !ok {
			if missingOK {
				return match
			}
			outerErr = errs.Newf(errs.KindReference, "secret not found: %s:%s", ref.Path, ref.Key)
			return match
		}
		if mask != nil {
			mask.Register(val)
		}
		return val
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

// ResolveInMap recurses through nested maps and lists, resolving string
// leaves via ResolveInString; non-string leaves pass through unchanged.
// Every successfully resolved value is also registered with mask so
// subsequent log output doesn't leak it (§4.4's "must also be registered"
// requirement).
func ResolveInMap(in map[string]any, getter Getter, missingOK bool, mask *masker.Masker) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		resolved, err := resolveValue(v, getter, missingOK, mask)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

func resolveValue(v any, getter Getter, missingOK bool, mask *masker.Masker) (any, error) {
	switch val := v.(type) {
	case string:
		resolved, err := resolveStringRegistering(val, getter, missingOK, mask)
		if err != nil {
			return nil, err
		}
		return resolved, nil
	case map[string]any:
		return ResolveInMap(val, getter, missingOK, mask)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := resolveValue(item, getter, missingOK, mask)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// ResolveEnvMap is the common case used by the config resolver: resolving
// ${secret:...} references inside a flat string->string env block.
func ResolveEnvMap(env map[string]string, getter Getter, missingOK bool, mask *masker.Masker) (map[string]string, error) {
	generic := make(map[string]any, len(env))
	for k, v := range env {
		generic[k] = v
	}
	resolved, err := ResolveInMap(generic, getter, missingOK, mask)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(resolved))
	for k, v := range resolved {
		out[k], _ = v.(string)
	}
	return out, nil
}
