package eval

import (
	"os/exec"
	"strconv"
	"strings"

	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/workflow"
)

// EventContext is the C11 input describing the VCS event being evaluated
// (§3).
type EventContext struct {
	EventType    EventType
	Branch       string
	SourceURL    string
	SourceRef    string
	CISourceURL  string
	CISourceRef  string
	PRBaseRef    string
	PRNumber     string
}

// ChangedFiles runs the §4.11 step-3 git diff, returning nil when
// the computation can't be done (no repo, first commit, missing base) --
// errors are swallowed there and path filtering is simply skipped, per
// spec.
func ChangedFiles(repoDir string, ev EventContext) []string {
	var args []string
	if isPullRequestEvent(ev.EventType) {
		base := ev.PRBaseRef
		if base == "" {
			return nil
		}
		args = []string{"diff", "--name-only", "origin/" + base, "HEAD"}
	} else {
		args = []string{"diff", "--name-only", "HEAD^", "HEAD"}
	}
	cmd := exec.Command("git", args...)
	cmd.Dir = repoDir
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	var files []string
	for _, l := range lines {
		if l != "" {
			files = append(files, l)
		}
	}
	return files
}

func isPullRequestEvent(e EventType) bool {
	switch e {
	case EventPullRequestOpened, EventPullRequestUpdated, EventPullRequestMerged, EventPullRequestClosed:
		return true
	default:
		return false
	}
}

// Matches implements §4.11 step 4. changedFiles is nil when unavailable,
// meaning path filters are skipped entirely.
func Matches(def JobDefinition, ev EventContext, changedFiles []string) bool {
	if !eventTypeIn(def.Triggers.Events, ev.EventType) {
		return false
	}
	if len(def.Triggers.Branches) > 0 && !MatchAny(def.Triggers.Branches, ev.Branch) {
		return false
	}
	if changedFiles != nil && (len(def.Paths.Include) > 0 || len(def.Paths.Exclude) > 0) {
		if !anyFileAdmitted(def.Paths.Include, def.Paths.Exclude, changedFiles) {
			return false
		}
	}
	return true
}

func eventTypeIn(events []EventType, target EventType) bool {
	for _, e := range events {
		if e == target {
			return true
		}
	}
	return false
}

func anyFileAdmitted(include, exclude []string, files []string) bool {
	for _, f := range files {
		included := len(include) == 0 || MatchAny(include, f)
		excluded := len(exclude) > 0 && MatchAny(exclude, f)
		if included && !excluded {
			return true
		}
	}
	return false
}

const runnerCLIName = "reactorcide"

// Synthesize builds the JobTrigger for a matched definition, merging
// event-derived environment variables over the definition's own (§4.11
// step 5) and wrapping the command with the runner CLI unless raw_command
// is set or it already starts with the CLI name.
func Synthesize(def JobDefinition, ev EventContext) workflow.JobTrigger {
	env := map[string]string{}
	for k, v := range def.Environment {
		env[k] = v
	}
	eventEnv := map[string]string{
		"REACTORCIDE_EVENT_TYPE":    string(ev.EventType),
		"REACTORCIDE_BRANCH":        ev.Branch,
		"REACTORCIDE_SHA":           ev.SourceRef,
		"REACTORCIDE_SOURCE_URL":    ev.SourceURL,
		"REACTORCIDE_PR_BASE_REF":   ev.PRBaseRef,
		"REACTORCIDE_PR_NUMBER":     ev.PRNumber,
		"REACTORCIDE_CI_SOURCE_URL": ev.CISourceURL,
		"REACTORCIDE_CI_SOURCE_REF": ev.CISourceRef,
	}
	for k, v := range eventEnv {
		if v != "" {
			env[k] = v
		}
	}

	t := workflow.JobTrigger{
		JobName:      def.Name,
		Env:          env,
		JobCommand:   wrapCommand(def),
		ContainerImage: def.Job.Image,
	}
	if ev.SourceURL != "" {
		t.SourceType, t.SourceURL, t.SourceRef = "git", ev.SourceURL, ev.SourceRef
	}
	if ev.CISourceURL != "" {
		t.CISourceType, t.CISourceURL, t.CISourceRef = "git", ev.CISourceURL, ev.CISourceRef
	}
	if def.Job.Priority != nil {
		t.Priority = def.Job.Priority
	}
	if def.Job.Timeout != nil {
		t.Timeout = def.Job.Timeout
	}
	return t
}

func wrapCommand(def JobDefinition) string {
	cmd := def.Job.Command
	if def.Job.RawCommand || strings.HasPrefix(strings.TrimSpace(cmd), runnerCLIName) {
		return cmd
	}
	return runnerCLIName + " run --job-command " + shellQuoteArg(cmd)
}

func shellQuoteArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// MatchAll runs Matches+Synthesize over every definition, returning the
// synthesized triggers for the ones that match.
func MatchAll(defs []JobDefinition, ev EventContext, changedFiles []string) []workflow.JobTrigger {
	var out []workflow.JobTrigger
	for _, def := range defs {
		if Matches(def, ev, changedFiles) {
			out = append(out, Synthesize(def, ev))
		}
	}
	return out
}

// ParsePRNumber is a small helper for CLI flag parsing that keeps
// EventContext.PRNumber as a string (trigger env vars are all strings)
// while still validating it's numeric when non-empty.
func ParsePRNumber(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if _, err := strconv.Atoi(s); err != nil {
		return "", errs.WithField(errs.KindEval, "pr_number", "must be numeric")
	}
	return s, nil
}
