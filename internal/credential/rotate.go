package credential

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Rotatable is a record whose secret can be replaced from a command.
type Rotatable interface {
	SetPassword(v string)
	Commit(ctx context.Context) error
	Reset()
}

// Rotate runs command, stages its stdout as the new password and commits.
// On failure the stored secret is untouched and the record is reset to its
// persisted values, so staged edits made before the call are dropped too.
func Rotate(ctx context.Context, c Rotatable, command string) error {
	output, err := runRotationCommand(ctx, command)
	if err != nil {
		return fmt.Errorf("rotation command failed: %w", err)
	}
	c.SetPassword(output)
	if err := c.Commit(ctx); err != nil {
		c.Reset()
		return fmt.Errorf("storing rotated secret: %w", err)
	}
	return nil
}

// runRotationCommand executes a rotation script and captures its stdout.
// The script must output the new secret value to stdout (and only the value).
func runRotationCommand(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), string(exitErr.Stderr))
		}
		return "", err
	}
	return strings.TrimRight(string(output), "\n"), nil
}
