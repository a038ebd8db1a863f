package main

import (
	"flag"

	"github.com/catalystcommunity/reactorcide/internal/eval"
	"github.com/catalystcommunity/reactorcide/internal/logging"
	"github.com/catalystcommunity/reactorcide/internal/workflow"
)

// cmdEval runs C11 end-to-end: load job definitions from the trusted
// source tree, compute changed files for the event, match and synthesize
// triggers, and hand them to the C10 emitter for a write-or-post flush.
func cmdEval(args []string) int {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	ciSourceDir := fs.String("ci-source-dir", "", "trusted tree holding .reactorcide/jobs")
	sourceDir := fs.String("source-dir", "", "event source tree, for changed-file computation")
	eventType := fs.String("event-type", "", "push|pull_request_opened|pull_request_updated|pull_request_merged|pull_request_closed|tag_created")
	branch := fs.String("branch", "", "branch name for the event")
	prBaseRef := fs.String("pr-base-ref", "", "base ref for pull_request_* events")
	prNumber := fs.String("pr-number", "", "pull request number")
	sourceURL := fs.String("source-url", "", "")
	sourceRef := fs.String("source-ref", "", "")
	ciSourceURL := fs.String("ci-source-url", "", "")
	ciSourceRef := fs.String("ci-source-ref", "", "")
	triggersFile := fs.String("triggers-file", "", "local triggers file path")
	coordinatorURL := fs.String("coordinator-url", "", "coordinator API base URL")
	apiToken := fs.String("api-token", "", "coordinator API bearer token")
	jobID := fs.String("job-id", "", "coordinator job id, for the triggers POST path")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *ciSourceDir == "" {
		return fatalf("--ci-source-dir is required")
	}
	et := eval.EventType(*eventType)
	if !eval.IsValidEventType(et) {
		return fatalf("invalid --event-type %q", *eventType)
	}
	if *prNumber != "" {
		if _, err := eval.ParsePRNumber(*prNumber); err != nil {
			return fatalf("%s", err)
		}
	}

	log := logging.New()
	defer log.Sync()

	defs, err := eval.LoadDefinitions(*ciSourceDir, log)
	if err != nil {
		return fatalf("%s", err)
	}

	ev := eval.EventContext{
		EventType:   et,
		Branch:      *branch,
		SourceURL:   *sourceURL,
		SourceRef:   *sourceRef,
		CISourceURL: *ciSourceURL,
		CISourceRef: *ciSourceRef,
		PRBaseRef:   *prBaseRef,
		PRNumber:    *prNumber,
	}

	var changedFiles []string
	if *sourceDir != "" {
		changedFiles = eval.ChangedFiles(*sourceDir, ev)
	}

	triggers := eval.MatchAll(defs, ev, changedFiles)
	log.Info("evaluated job definitions", "defined", len(defs), "matched", len(triggers))

	emitter := workflow.New(workflow.Options{
		TriggersFilePath: *triggersFile,
		CoordinatorURL:   *coordinatorURL,
		APIToken:         *apiToken,
		JobID:            *jobID,
	}, log)
	for _, t := range triggers {
		emitter.Trigger(t)
	}
	if err := emitter.Flush(); err != nil {
		return fatalf("%s", err)
	}
	return 0
}
