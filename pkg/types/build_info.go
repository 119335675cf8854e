package types

import (
	"time"
)

// BuildFailureExitCode is the exit code that signifies a failure
// before even running the build command
const BuildFailureExitCode = -999

// BuildInfo is the outcome of a single builder run.
type BuildInfo struct {
	ID string `json:"id"`

	// The argv of the build command.
	Command []string `json:"command"`

	// Name of the runner the build command was executed with.
	Runner string `json:"runner"`

	// The exit code status of the build command.
	ExitCode int `json:"exitCode"`

	// The exit code status of the packaging command.
	//
	// NOTE: irrelevant if the packaging step was never reached.
	PackageExitCode int `json:"packageExitCode"`

	// The artifacts that were promoted into the staging directory,
	// including the ones that failed to copy.
	Artifacts []Artifact `json:"artifacts"`

	StagingDir string `json:"stagingDir"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`

	// Contains the stdout and stderr as output by the build command
	Log string `json:"log,omitempty"`

	ErrBuild string `json:"errBuild,omitempty"`
}

// Artifact is a single file produced by the build command.
type Artifact struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256,omitempty"`

	// Err holds the copy error, empty if the artifact was promoted.
	Err string `json:"err,omitempty"`
}

// NewBuildInfo returns a BuildInfo for a build that has not run yet.
func NewBuildInfo(id string) *BuildInfo {
	bi := new(BuildInfo)
	bi.ID = id
	bi.StartedAt = time.Now()
	bi.ExitCode = BuildFailureExitCode
	bi.PackageExitCode = BuildFailureExitCode

	return bi
}

// Promoted returns the artifacts that were copied successfully.
func (bi *BuildInfo) Promoted() []Artifact {
	var res []Artifact
	for _, a := range bi.Artifacts {
		if a.Err == "" {
			res = append(res, a)
		}
	}
	return res
}
