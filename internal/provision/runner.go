package provision

import (
	"context"
	"os/exec"
	"strings"
)

// CommandRunner abstracts external tool invocation so provisioning steps can
// be exercised without mysql, nginx or wp-cli present. Arguments are always
// passed as an argv slice; nothing here goes through a shell.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func NewExecRunner() CommandRunner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
