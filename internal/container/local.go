package container

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/logging"
	"github.com/catalystcommunity/reactorcide/internal/masker"
)

// RunLocal executes jobCommand under "sh -c" with stderr merged into
// stdout (§4.9: "stderr is merged into stdout to simplify single-stream
// redaction"), streaming line-buffered output through m to w. It returns
// the child's exit code; on ctx cancellation the child is killed and 130
// is returned, matching the container path's interrupt behavior.
func RunLocal(ctx context.Context, jobCommand string, dir string, env map[string]string, m *masker.Masker, w io.Writer, log *logging.Logger) (int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", jobCommand)
	cmd.Dir = dir
	cmd.Env = mergeEnv(os.Environ(), env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, errs.Wrap(errs.KindContainer, "opening stdout pipe", err)
	}
	cmd.Stderr = cmd.Stdout // merged, per §4.9

	if err := cmd.Start(); err != nil {
		return 0, errs.Wrap(errs.KindContainer, "starting local command", err)
	}

	done := make(chan struct{})
	go func() {
		streamMasked(stdout, w, m)
		close(done)
	}()

	waitErr := cmd.Wait()
	<-done

	if ctx.Err() != nil {
		return 130, nil
	}

	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if ok := asExitError(waitErr, &exitErr); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				log.Warn("local command terminated by signal", "signal", status.Signal().String())
				return 128 + int(status.Signal()), nil
			}
		}
		return exitErr.ExitCode(), nil
	}
	return 0, errs.Wrap(errs.KindContainer, "running local command", waitErr)
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// streamMasked copies r to w one line at a time, masking each line before
// it's written. A trailing partial line (no newline) is masked too and
// written with a newline appended, like every other line.
func streamMasked(r io.Reader, w io.Writer, m *masker.Masker) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := m.Mask(scanner.Text())
		io.WriteString(w, line)
		io.WriteString(w, "\n")
	}
}

func mergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	seen := map[string]struct{}{}
	for k, v := range overrides {
		out = append(out, k+"="+v)
		seen[k] = struct{}{}
	}
	for _, kv := range base {
		k := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			k = kv[:idx]
		}
		if _, ok := seen[k]; ok {
			continue
		}
		out = append(out, kv)
	}
	return out
}
