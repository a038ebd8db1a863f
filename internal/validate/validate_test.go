package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/catalystcommunity/reactorcide/internal/config"
)

func baseDescriptor() *config.JobDescriptor {
	return &config.JobDescriptor{
		CodeDir:    "/job/src",
		JobCommand: "echo hi",
	}
}

func TestValidateRequiredFieldsMissing(t *testing.T) {
	r := Validate(&config.JobDescriptor{}, Options{})
	if r.IsValid() {
		t.Fatalf("expected invalid result for empty descriptor")
	}
	if len(r.Errors) < 2 {
		t.Fatalf("expected at least 2 errors (code_dir, job_command), got %+v", r.Errors)
	}
}

func TestValidateWellFormedIsValid(t *testing.T) {
	r := Validate(baseDescriptor(), Options{})
	if !r.IsValid() {
		t.Fatalf("expected valid, got errors %+v", r.Errors)
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	d := baseDescriptor()
	first := Validate(d, Options{})
	second := Validate(d, Options{})
	if len(first.Errors) != len(second.Errors) || len(first.Warnings) != len(second.Warnings) {
		t.Fatalf("expected deterministic validation, got %+v vs %+v", first, second)
	}
}

func TestValidateWarnsOnSensitiveEnvOverride(t *testing.T) {
	d := baseDescriptor()
	d.JobEnv = "PATH=/custom\nFOO=bar"
	r := Validate(d, Options{})
	found := false
	for _, w := range r.Warnings {
		if w.Field == "job_env" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected warning for overriding PATH, got %+v", r.Warnings)
	}
}

func TestValidateWarnsOnLongEnvValue(t *testing.T) {
	d := baseDescriptor()
	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'a'
	}
	d.JobEnv = "BIG=" + string(long)
	r := Validate(d, Options{})
	found := false
	for _, w := range r.Warnings {
		if w.Field == "job_env" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected warning for value over 1000 chars, got %+v", r.Warnings)
	}
}

func TestValidateImageWithSpaceWarns(t *testing.T) {
	d := baseDescriptor()
	d.RunnerImage = "my image:v1"
	r := Validate(d, Options{})
	found := false
	for _, w := range r.Warnings {
		if w.Field == "runner_image" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected warning for image name with space, got %+v", r.Warnings)
	}
}

func TestValidateImageMissingTagWarns(t *testing.T) {
	d := baseDescriptor()
	d.RunnerImage = "myimage"
	r := Validate(d, Options{})
	foundMissingTag := false
	for _, w := range r.Warnings {
		if w.Field == "runner_image" {
			foundMissingTag = true
		}
	}
	if !foundMissingTag {
		t.Fatalf("expected warning for missing tag, got %+v", r.Warnings)
	}
}

func TestValidateImageLatestTagWarns(t *testing.T) {
	d := baseDescriptor()
	d.RunnerImage = "myimage:latest"
	r := Validate(d, Options{})
	found := false
	for _, w := range r.Warnings {
		if w.Field == "runner_image" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected warning for :latest tag, got %+v", r.Warnings)
	}
}

func TestValidateImagePinnedTagNoWarning(t *testing.T) {
	d := baseDescriptor()
	d.RunnerImage = "myimage:v1.2.3"
	r := Validate(d, Options{})
	for _, w := range r.Warnings {
		if w.Field == "runner_image" {
			t.Fatalf("expected no warning for pinned tag, got %+v", w)
		}
	}
}

func TestValidateRequireContainerRuntimeMissingBinary(t *testing.T) {
	d := baseDescriptor()
	r := Validate(d, Options{RequireContainerRuntime: true, ContainerRuntime: "definitely-not-a-real-binary-xyz"})
	if r.IsValid() {
		t.Fatalf("expected error when container runtime is missing")
	}
}

func TestValidateContainerRuntimeNotRequiredWhenNotContainerMode(t *testing.T) {
	d := baseDescriptor()
	r := Validate(d, Options{RequireContainerRuntime: false, ContainerRuntime: "definitely-not-a-real-binary-xyz"})
	if !r.IsValid() {
		t.Fatalf("expected valid when runtime check not required, got %+v", r.Errors)
	}
}

func TestValidateFilesystemChecksSkippedByDefault(t *testing.T) {
	d := baseDescriptor()
	r := Validate(d, Options{CheckFiles: false, WorkspaceRoot: "/nonexistent"})
	if !r.IsValid() {
		t.Fatalf("expected filesystem checks skipped when CheckFiles is false, got %+v", r.Errors)
	}
}

func TestValidateFilesystemChecksCatchMissingWorkspace(t *testing.T) {
	d := baseDescriptor()
	r := Validate(d, Options{CheckFiles: true, WorkspaceRoot: "/nonexistent-workspace-xyz"})
	if r.IsValid() {
		t.Fatalf("expected error for missing workspace")
	}
}

func TestValidateFilesystemChecksPassWithPopulatedWorkspace(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	d := baseDescriptor()
	r := Validate(d, Options{CheckFiles: true, WorkspaceRoot: root})
	if !r.IsValid() {
		t.Fatalf("expected valid, got %+v", r.Errors)
	}
}
