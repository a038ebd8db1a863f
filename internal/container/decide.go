package container

import "github.com/catalystcommunity/reactorcide/internal/config"

// UseContainer implements §4.9's mode decision: container mode is used
// when the caller requested it explicitly or a runner image was supplied;
// otherwise the job command runs locally under shell interpretation.
func UseContainer(d *config.JobDescriptor) bool {
	return d.Container || d.RunnerImage != ""
}
