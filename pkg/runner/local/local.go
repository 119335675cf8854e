package local

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/sql-infer/devtools/pkg/runner"
)

// Local implements the Runner interface by executing commands directly on
// the host.
type Local struct{}

func init() {
	runner.Registry["local"] = Local{}
}

// Run runs cmd and blocks until it exits.
func (l Local) Run(ctx context.Context, cmd runner.Command, out io.Writer) (int, error) {
	if len(cmd.Args) == 0 {
		return 0, errors.New("empty command")
	}

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.EnvList()...)
	}
	c.Stdout = out
	c.Stderr = out

	err := c.Run()
	if err == nil {
		return 0, nil
	}

	// a killed process also reports an ExitError; the context is the
	// real cause then
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
