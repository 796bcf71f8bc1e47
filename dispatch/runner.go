package dispatch

import (
	"context"
	"os"
	"os/exec"
)

// Runner executes one tool invocation. The dispatcher only cares whether
// the invocation succeeded; everything else (progress output, retries
// inside the tool) belongs to the tool itself.
type Runner interface {
	Run(ctx context.Context, bin string, args []string) error
}

// ExecRunner launches the real subprocess. Stdout and stderr are
// inherited so the tool's progress output stays visible to the operator.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
