// Package workflow implements the workflow emitter (C10): an in-process
// API for a running job to declare follow-up jobs, flushed either to a
// coordinator HTTP API or to a local triggers file, with context-manager
// discipline for flush-on-success/skip-on-failure.
//
// Grounded in _examples/original_source/api_client.py's POST-with-bearer-
// token shape (see SPEC_FULL.md) translated to net/http, and in the
// teacher's habit of exposing a lazy package-level default instance
// alongside the constructible type (§9's "retain a singleton convenience
// wrapper only for user-facing module-level functions").
package workflow

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/logging"
)

// Condition is the dependency-satisfaction rule for a trigger.
type Condition string

const (
	ConditionAllSuccess Condition = "all_success"
	ConditionAnySuccess Condition = "any_success"
	ConditionAlways     Condition = "always"
)

// JobTrigger is the serialized product of a queued trigger (§3). Absent
// optional fields are elided via omitempty, matching the bit-exact
// triggers-file contract.
type JobTrigger struct {
	JobName       string            `json:"job_name"`
	DependsOn     []string          `json:"depends_on,omitempty"`
	Condition     Condition         `json:"condition,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	SourceType    string            `json:"source_type,omitempty"`
	SourceURL     string            `json:"source_url,omitempty"`
	SourceRef     string            `json:"source_ref,omitempty"`
	CISourceType  string            `json:"ci_source_type,omitempty"`
	CISourceURL   string            `json:"ci_source_url,omitempty"`
	CISourceRef   string            `json:"ci_source_ref,omitempty"`
	ContainerImage string           `json:"container_image,omitempty"`
	JobCommand    string            `json:"job_command,omitempty"`
	Priority      *int              `json:"priority,omitempty"`
	Timeout       *int              `json:"timeout,omitempty"`
}

// triggersFile is the bit-exact §3 layout; the "type" key must precede
// "jobs" in every serialization, which plain struct field order guarantees.
type triggersFile struct {
	Type string       `json:"type"`
	Jobs []JobTrigger `json:"jobs"`
}

// Options configures flush's coordinator-vs-file decision.
type Options struct {
	TriggersFilePath string
	CoordinatorURL   string
	APIToken         string
	JobID            string
	HTTPClient       *http.Client
}

func (o Options) apiConfigured() bool {
	return strings.TrimSpace(o.CoordinatorURL) != "" &&
		strings.TrimSpace(o.APIToken) != "" &&
		strings.TrimSpace(o.JobID) != ""
}

// Emitter queues triggers in memory and flushes them per §4.10.
type Emitter struct {
	opts  Options
	queue []JobTrigger
	log   *logging.Logger
}

func New(opts Options, log *logging.Logger) *Emitter {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Emitter{opts: opts, log: log.Named("workflow")}
}

// Trigger queues a follow-up job in memory and logs its name.
func (e *Emitter) Trigger(t JobTrigger) {
	e.queue = append(e.queue, t)
	e.log.Info("queued trigger", "job", t.JobName)
}

// Flush implements §4.10's dispatch rule. An empty queue is a no-op.
func (e *Emitter) Flush() error {
	if len(e.queue) == 0 {
		return nil
	}
	if e.opts.apiConfigured() {
		if err := e.postToCoordinator(); err != nil {
			e.log.Warn("coordinator flush failed, falling back to local file", "error", err)
		} else {
			return removeIfExists(e.opts.TriggersFilePath)
		}
	}
	return e.writeLocalFile()
}

func (e *Emitter) postToCoordinator() error {
	body, err := json.Marshal(triggersFile{Type: "trigger_job", Jobs: e.queue})
	if err != nil {
		return errs.Wrap(errs.KindConfig, "marshaling triggers", err)
	}
	url := fmt.Sprintf("%s/api/v1/jobs/%s/triggers", strings.TrimRight(e.opts.CoordinatorURL, "/"), e.opts.JobID)
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+e.opts.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("coordinator returned status %d", resp.StatusCode)
	}
	return nil
}

// writeLocalFile merges the in-memory queue with any existing triggers
// file and rewrites it, per §4.10's merge policy.
func (e *Emitter) writeLocalFile() error {
	existing, err := readTriggersFile(e.opts.TriggersFilePath)
	if err != nil {
		return err
	}
	existing.Type = "trigger_job"
	existing.Jobs = append(existing.Jobs, e.queue...)

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindConfig, "marshaling triggers file", err)
	}
	return os.WriteFile(e.opts.TriggersFilePath, data, 0644)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func readTriggersFile(path string) (triggersFile, error) {
	var tf triggersFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return triggersFile{Type: "trigger_job"}, nil
		}
		return tf, errs.Wrap(errs.KindConfig, "reading existing triggers file", err)
	}
	if err := json.Unmarshal(data, &tf); err != nil {
		return tf, errs.Wrap(errs.KindConfig, "parsing existing triggers file", err)
	}
	return tf, nil
}

// IsJobRunning and GetJobResult are stubs: absent API configuration always
// answers false/nil, matching §4.10's documented behavior that real
// coordinator queries are out of scope here.
func (e *Emitter) IsJobRunning(name string) bool {
	if !e.opts.apiConfigured() {
		return false
	}
	return false
}

func (e *Emitter) GetJobResult(name string) any {
	if !e.opts.apiConfigured() {
		return nil
	}
	return nil
}

// Scope runs fn with a fresh Emitter and flushes on a nil return, matching
// §4.10's context-manager discipline: on exception (non-nil return from
// fn) neither the error nor the queued triggers are flushed.
func Scope(opts Options, log *logging.Logger, fn func(*Emitter) error) error {
	e := New(opts, log)
	if err := fn(e); err != nil {
		return err
	}
	return e.Flush()
}
