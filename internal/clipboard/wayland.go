package clipboard

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
)

// DefaultToolTimeout bounds a single wl-paste or wl-copy invocation.
const DefaultToolTimeout = 2 * time.Second

// Wayland drives the clipboard through the wl-clipboard tools.
type Wayland struct {
	PasteBin string
	CopyBin  string
	Timeout  time.Duration
}

// NewWayland returns a Wayland capability using wl-paste and wl-copy from PATH.
func NewWayland(timeout time.Duration) *Wayland {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Wayland{PasteBin: "wl-paste", CopyBin: "wl-copy", Timeout: timeout}
}

// CheckPrerequisites requires both tools on PATH and a Wayland session.
func (w *Wayland) CheckPrerequisites(ctx context.Context) error {
	for _, bin := range []string{w.PasteBin, w.CopyBin} {
		if _, err := exec.LookPath(bin); err != nil {
			return apperrors.Wrap(apperrors.ErrExternalTool,
				bin+" not found in PATH - install the wl-clipboard package", err)
		}
	}
	if os.Getenv("WAYLAND_DISPLAY") == "" {
		return apperrors.New(apperrors.ErrExternalTool, "WAYLAND_DISPLAY not set - not running under Wayland")
	}
	return nil
}

// run executes bin with args, feeding stdin when non-nil. Output is only
// captured when stdin is nil; wl-copy's forked selection server would keep
// captured pipes open. exited reports a normal non-zero exit, which callers
// may treat as "nothing offered".
func (w *Wayland) run(ctx context.Context, stdin []byte, bin string, args ...string) (out []byte, exited bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = w.Timeout
	var stdout, stderr bytes.Buffer
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err = cmd.Run()
	if ctx.Err() != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrExternalTool, bin+" timed out", ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := bin + " exited with failure"
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			msg += ": " + detail
		}
		return nil, true, apperrors.Wrap(apperrors.ErrExternalTool, msg, err)
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrExternalTool, "failed to run "+bin, err)
	}
	return stdout.Bytes(), false, nil
}

// Types runs wl-paste --list-types. An empty clipboard yields no types.
func (w *Wayland) Types(ctx context.Context) ([]string, error) {
	out, exited, err := w.run(ctx, nil, w.PasteBin, "--list-types")
	if exited {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	types := []string{}
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			types = append(types, line)
		}
	}
	return types, nil
}

// Read runs wl-paste for mime. A non-zero exit means nothing is offered.
func (w *Wayland) Read(ctx context.Context, mime string) ([]byte, error) {
	out, exited, err := w.run(ctx, nil, w.PasteBin, "--no-newline", "--type", mime)
	if exited {
		return []byte{}, nil
	}
	return out, err
}

// Write pipes data into wl-copy. Any failure is an ExternalToolFailure.
func (w *Wayland) Write(ctx context.Context, mime string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, _, err := w.run(ctx, data, w.CopyBin, "--type", mime)
	return err
}
