// Package runner executes the external build and packaging commands.
// Implementations register themselves in Registry from their init
// functions, the same way filesystem adapters do.
package runner

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Registry maps the runner name to its implementation
var Registry = make(map[string]Runner)

// Command describes a single external command invocation.
type Command struct {
	// Args is the argv of the command; Args[0] is the program.
	Args []string

	// Dir is the working directory. Empty means the current one.
	Dir string

	// Env holds extra environment variables, added on top of the
	// runner's own environment.
	Env map[string]string

	// Image is the container image the command runs in. Only meaningful
	// for container runners.
	Image string

	// Log receives diagnostics of the runner itself. Nil discards them.
	Log logrus.FieldLogger
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// EnvList returns Env as a sorted list of KEY=VALUE pairs.
func (c Command) EnvList() []string {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// Runner runs a Command to completion, streaming its combined stdout and
// stderr to out.
//
// The returned exit code is only meaningful when err is nil. A non-zero exit
// code is not an error; err is reserved for failures to start or supervise
// the command (missing binary, cancelled context, unreachable daemon).
type Runner interface {
	Run(ctx context.Context, cmd Command, out io.Writer) (int, error)
}

// Get returns the registered runner denoted by s. If it doesn't exist,
// an error is returned.
func Get(s string) (Runner, error) {
	r, ok := Registry[s]
	if !ok {
		return nil, fmt.Errorf("unknown runner '%s' (%v)", s, Names())
	}
	return r, nil
}

// Names returns the names of all registered runners, sorted.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
