package container

import (
	"testing"

	"github.com/catalystcommunity/reactorcide/internal/config"
)

func TestUseContainerWithExplicitFlag(t *testing.T) {
	d := &config.JobDescriptor{Container: true}
	if !UseContainer(d) {
		t.Fatalf("expected container mode when Container flag set")
	}
}

func TestUseContainerWithRunnerImage(t *testing.T) {
	d := &config.JobDescriptor{RunnerImage: "alpine:3.19"}
	if !UseContainer(d) {
		t.Fatalf("expected container mode when runner_image set")
	}
}

func TestUseContainerFalseByDefault(t *testing.T) {
	d := &config.JobDescriptor{}
	if UseContainer(d) {
		t.Fatalf("expected local mode by default")
	}
}
