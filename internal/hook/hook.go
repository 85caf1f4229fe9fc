// Package hook invokes the user's download hook: an external executable
// run after each successful episode download. Only the exit code is
// observed; stdout and stderr are not parsed.
package hook

import (
	"context"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single hook invocation. A hung hook must not
// hold up the run or block the tracker commit.
const DefaultTimeout = 60 * time.Second

// Run executes the hook with the given arguments and waits for it to
// exit. A nonzero exit or timeout is returned as an error; the caller
// treats it as a warning, never as a download failure.
func Run(ctx context.Context, hookPath string, timeout time.Duration, args ...string) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return exec.CommandContext(ctx, hookPath, args...).Run()
}
