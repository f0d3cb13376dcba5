package network

import (
	"context"
	"os/exec"
)

// runCommand executes a system binary and returns its combined output.
// Tests replace it.
var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() // #nosec G204 -- args are validated hosts and integers
}
