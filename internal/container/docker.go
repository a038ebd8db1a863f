package container

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/logging"
	"github.com/catalystcommunity/reactorcide/internal/masker"
)

// DockerRunner launches Plan against a real Docker Engine, grounded in
// _examples/Aureuma-si/agents/shared/docker/client.go's NewClientWithOpts +
// ContainerCreate/Start/Logs shape, adapted here to run a single one-shot
// job container instead of a long-lived service container.
type DockerRunner struct {
	api *client.Client
	log *logging.Logger
}

func NewDockerRunner(log *logging.Logger) (*DockerRunner, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errs.Wrap(errs.KindContainer, "creating docker client", err)
	}
	return &DockerRunner{api: api, log: log.Named("container")}, nil
}

func (r *DockerRunner) Close() error {
	if r == nil || r.api == nil {
		return nil
	}
	return r.api.Close()
}

// Run creates, starts, streams, and removes a container per Plan,
// returning its exit code. Streaming interleaves stdout/stderr via
// stdcopy.StdCopy into two masked writers, matching the reader-loop
// discipline §4.9 requires.
func (r *DockerRunner) Run(ctx context.Context, p Plan, m *masker.Masker, stdout, stderr io.Writer) (int, error) {
	envList := make([]string, 0, len(p.Env))
	for k, v := range p.Env {
		envList = append(envList, k+"="+v)
	}

	mounts := []mount.Mount{{
		Type:   mount.TypeBind,
		Source: p.HostJobPath,
		Target: p.WorkspaceRoot,
	}}
	if p.SecretsFile != "" && p.SecretsFileExists {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   p.SecretsFile,
			Target:   "/run/secrets/env",
			ReadOnly: true,
		})
	}
	if p.SocketPath != "" && p.SocketExists {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: "/tmp",
			Target: "/tmp",
		})
	}

	resources := container.Resources{}
	if p.MemoryLimit != "" {
		if bytes, err := parseMemoryLimit(p.MemoryLimit); err == nil {
			resources.Memory = bytes
		}
	}
	if p.CPULimit != "" {
		if nano, err := parseCPULimit(p.CPULimit); err == nil {
			resources.NanoCPUs = nano
		}
	}

	cfg := &container.Config{
		Image:      p.Image,
		Cmd:        append(append([]string{}, p.JobCommand...), p.TrailingArgs...),
		Env:        envList,
		WorkingDir: p.WorkDir,
	}
	hostCfg := &container.HostConfig{
		Mounts:     mounts,
		AutoRemove: false, // removed explicitly below so logs can be drained first
		Resources:  resources,
	}

	created, err := r.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return 0, errs.Wrap(errs.KindContainer, "creating container", err)
	}
	containerID := created.ID
	defer func() {
		_ = r.api.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true})
	}()

	if err := r.api.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return 0, errs.Wrap(errs.KindContainer, "starting container", err)
	}

	logsReader, err := r.api.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true, ShowStderr: true, Follow: true,
	})
	if err != nil {
		return 0, errs.Wrap(errs.KindContainer, "attaching container logs", err)
	}
	defer logsReader.Close()

	maskedOut := &maskedWriter{w: stdout, m: m}
	maskedErr := &maskedWriter{w: stderr, m: m}
	streamDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(maskedOut, maskedErr, logsReader)
		streamDone <- copyErr
	}()

	statusCh, errCh := r.api.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case <-ctx.Done():
		_ = r.api.ContainerKill(context.Background(), containerID, "SIGKILL")
		<-streamDone
		return 130, nil
	case err := <-errCh:
		if err != nil {
			return 0, errs.Wrap(errs.KindContainer, "waiting for container", err)
		}
	case status := <-statusCh:
		<-streamDone
		return int(status.StatusCode), nil
	}
	return 0, nil
}

// maskedWriter masks each write before forwarding. stdcopy.StdCopy writes
// whole demuxed frames rather than lines, so masking operates per-frame
// here; the local-exec path's line-buffered variant lives in local.go.
type maskedWriter struct {
	w io.Writer
	m *masker.Masker
}

func (mw *maskedWriter) Write(p []byte) (int, error) {
	masked := mw.m.Mask(string(p))
	if _, err := io.WriteString(mw.w, masked); err != nil {
		return 0, err
	}
	return len(p), nil
}

// parseMemoryLimit accepts the docker-style "512m"/"2g"/plain-bytes shape
// that plugins write into resource_limits metadata.
func parseMemoryLimit(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "g"):
		mult, s = 1<<30, strings.TrimSuffix(s, "g")
	case strings.HasSuffix(s, "m"):
		mult, s = 1<<20, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "k"):
		mult, s = 1<<10, strings.TrimSuffix(s, "k")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mult, nil
}

func parseCPULimit(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int64(f * 1e9), nil
}
