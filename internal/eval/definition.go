package eval

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/logging"
)

// EventType is one of the closed set of VCS hooks named in §4.11 step 2.
type EventType string

const (
	EventPush               EventType = "push"
	EventPullRequestOpened  EventType = "pull_request_opened"
	EventPullRequestUpdated EventType = "pull_request_updated"
	EventPullRequestMerged  EventType = "pull_request_merged"
	EventPullRequestClosed  EventType = "pull_request_closed"
	EventTagCreated         EventType = "tag_created"
)

var validEventTypes = map[EventType]struct{}{
	EventPush: {}, EventPullRequestOpened: {}, EventPullRequestUpdated: {},
	EventPullRequestMerged: {}, EventPullRequestClosed: {}, EventTagCreated: {},
}

func IsValidEventType(e EventType) bool {
	_, ok := validEventTypes[e]
	return ok
}

// JobDefinition is the parsed shape of one .reactorcide/jobs/*.yaml file
// (§3).
type JobDefinition struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Triggers    struct {
		Events   []EventType `yaml:"events"`
		Branches []string    `yaml:"branches"`
	} `yaml:"triggers"`
	Paths struct {
		Include []string `yaml:"include"`
		Exclude []string `yaml:"exclude"`
	} `yaml:"paths"`
	Job struct {
		Image      string `yaml:"image"`
		Command    string `yaml:"command"`
		Timeout    *int   `yaml:"timeout"`
		Priority   *int   `yaml:"priority"`
		RawCommand bool   `yaml:"raw_command"`
	} `yaml:"job"`
	Environment map[string]string `yaml:"environment"`

	SourceFile string `yaml:"-"`
}

// LoadDefinitions enumerates <trustedTree>/.reactorcide/jobs/*.{yml,yaml}
// (sorted for determinism), skipping any file that isn't a mapping with a
// non-empty name, with a warning (§4.11 step 1).
func LoadDefinitions(trustedTree string, log *logging.Logger) ([]JobDefinition, error) {
	dir := filepath.Join(trustedTree, ".reactorcide", "jobs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindEval, "reading job definitions directory", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	defs := make([]JobDefinition, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping unreadable job definition", "file", path, "error", err)
			continue
		}
		var def JobDefinition
		if err := yaml.Unmarshal(data, &def); err != nil {
			log.Warn("skipping malformed job definition", "file", path, "error", err)
			continue
		}
		if strings.TrimSpace(def.Name) == "" {
			log.Warn("skipping job definition with no name", "file", path)
			continue
		}
		def.SourceFile = path
		defs = append(defs, def)
	}
	return defs, nil
}
