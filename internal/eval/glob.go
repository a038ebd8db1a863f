// Package eval implements the event evaluator (C11): parsing declarative
// YAML job definitions from the trusted tree, matching them against a VCS
// event, and synthesizing trigger records.
//
// Grounded in gopkg.in/yaml.v3 (the pack's only YAML dependency, also used
// by _examples/knative-pkg and kubernetes-test-infra for config parsing)
// for the job-definition files, and in the segment-aware glob semantics
// spelled out in spec.md §4.11 rather than filepath.Match (whose "**"
// has no special cross-segment meaning).
package eval

import "strings"

// MatchGlob implements the shared branch/path glob semantics (§4.11):
// "*" matches within one segment, "?" matches one character within a
// segment, and "**" matches zero or more whole segments.
func MatchGlob(pattern, target string) bool {
	return matchSegments(splitSegments(pattern), splitSegments(target))
}

func splitSegments(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "/")
}

func matchSegments(pattern, target []string) bool {
	if len(pattern) == 0 {
		return len(target) == 0
	}
	head := pattern[0]
	if head == "**" {
		if matchSegments(pattern[1:], target) {
			return true
		}
		if len(target) == 0 {
			return false
		}
		return matchSegments(pattern, target[1:])
	}
	if len(target) == 0 {
		return false
	}
	if !matchSegment(head, target[0]) {
		return false
	}
	return matchSegments(pattern[1:], target[1:])
}

// matchSegment matches a single path/branch segment containing "*"/"?"
// wildcards (neither of which may cross a "/", since splitSegments has
// already separated on it).
func matchSegment(pattern, segment string) bool {
	return matchSegmentAt(pattern, segment)
}

func matchSegmentAt(pattern, segment string) bool {
	if pattern == "" {
		return segment == ""
	}
	switch pattern[0] {
	case '*':
		if matchSegmentAt(pattern[1:], segment) {
			return true
		}
		if segment == "" {
			return false
		}
		return matchSegmentAt(pattern, segment[1:])
	case '?':
		if segment == "" {
			return false
		}
		return matchSegmentAt(pattern[1:], segment[1:])
	default:
		if segment == "" || pattern[0] != segment[0] {
			return false
		}
		return matchSegmentAt(pattern[1:], segment[1:])
	}
}

// MatchAny reports whether target matches at least one pattern in patterns
// (an empty patterns list is treated by callers as "no filter configured",
// not as "matches nothing" -- see Matches and anyFileAdmitted in match.go).
func MatchAny(patterns []string, target string) bool {
	for _, p := range patterns {
		if MatchGlob(p, target) {
			return true
		}
	}
	return false
}
