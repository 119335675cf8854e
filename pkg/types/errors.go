package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoArtifacts indicates the build succeeded but nothing matched the
// artifact pattern.
var ErrNoArtifacts = errors.New("no artifacts found")

// ErrBuild indicates the build command failed. ExitCode is
// BuildFailureExitCode if the command could not be started at all.
type ErrBuild struct {
	ExitCode int
	Err      error
}

func (e ErrBuild) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build failed with exit code %d: %s", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("build failed with exit code %d", e.ExitCode)
}

func (e ErrBuild) Unwrap() error {
	return e.Err
}

// ErrPackage indicates the packaging command failed.
type ErrPackage struct {
	ExitCode int
	Err      error
}

func (e ErrPackage) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("packaging failed with exit code %d: %s", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("packaging failed with exit code %d", e.ExitCode)
}

func (e ErrPackage) Unwrap() error {
	return e.Err
}

// ErrPromote aggregates the artifacts that could not be copied into the
// staging directory.
type ErrPromote struct {
	Failed map[string]error
}

func (e ErrPromote) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name, err := range e.Failed {
		names = append(names, fmt.Sprintf("%s (%s)", name, err))
	}
	sort.Strings(names)
	return fmt.Sprintf("could not promote %d artifact(s): %s", len(e.Failed), strings.Join(names, ", "))
}
