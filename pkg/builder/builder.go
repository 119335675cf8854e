// Package builder runs the external build, promotes the resulting artifacts
// into the package staging directory and invokes the packager.
package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sql-infer/devtools/pkg/config"
	"github.com/sql-infer/devtools/pkg/filesystem"
	"github.com/sql-infer/devtools/pkg/logging"
	"github.com/sql-infer/devtools/pkg/runner"
	"github.com/sql-infer/devtools/pkg/types"
	"github.com/sql-infer/devtools/pkg/utils"
)

// PackageRunner is the runner the packaging command always goes through.
// The packager is a host tool, regardless of where the build ran.
const PackageRunner = "local"

// Builder is the component that performs a build. It is not safe for
// concurrent use.
type Builder struct {
	Log *logrus.Logger

	cfg           config.Build
	env           map[string]string
	buildRunner   runner.Runner
	packageRunner runner.Runner
	fs            filesystem.FileSystem

	// out receives the output of the build and packaging commands
	out   io.Writer
	newID func() string
}

// Option customizes a Builder.
type Option func(*Builder)

// WithLogger sets the logger. By default logs are discarded.
func WithLogger(l *logrus.Logger) Option {
	return func(b *Builder) { b.Log = l }
}

// WithOutput sets where command output is streamed. By default it is only
// captured in BuildInfo.Log.
func WithOutput(w io.Writer) Option {
	return func(b *Builder) { b.out = w }
}

// WithRunner overrides the runner of the build command.
func WithRunner(r runner.Runner) Option {
	return func(b *Builder) { b.buildRunner = r }
}

// WithPackageRunner overrides the runner of the packaging command.
func WithPackageRunner(r runner.Runner) Option {
	return func(b *Builder) { b.packageRunner = r }
}

// WithFileSystem overrides the filesystem adapter used for promotion.
func WithFileSystem(fs filesystem.FileSystem) Option {
	return func(b *Builder) { b.fs = fs }
}

// New accepts a build configuration and returns a new Builder. Runners and
// filesystems not given as options are looked up in their registries by
// the names in cfg.
func New(cfg config.Build, opts ...Option) (*Builder, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	err = utils.PathIsDir(cfg.WorkDir)
	if err != nil {
		return nil, buildErr("invalid work dir", err)
	}

	b := &Builder{cfg: cfg, out: io.Discard, newID: func() string { return uuid.New().String() }}
	b.env, err = config.ParseEnv(cfg.Env)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.Log == nil {
		b.Log = logging.Discard()
	}
	if b.buildRunner == nil {
		b.buildRunner, err = runner.Get(cfg.Runner)
		if err != nil {
			return nil, err
		}
	}
	if b.packageRunner == nil {
		b.packageRunner, err = runner.Get(PackageRunner)
		if err != nil {
			return nil, err
		}
	}
	if b.fs == nil {
		b.fs, err = filesystem.Get(cfg.FileSystem)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Run performs the build and returns its BuildInfo, which is never nil.
//
// A failing build command returns types.ErrBuild and nothing is promoted or
// packaged. Failing to promote any artifact returns types.ErrPromote and the
// packager does not run. A failing packager returns types.ErrPackage.
func (b *Builder) Run(ctx context.Context) (bi *types.BuildInfo, err error) {
	bi = types.NewBuildInfo(b.newID())
	bi.Command = b.cfg.BuildCommand
	bi.Runner = b.cfg.Runner
	bi.StagingDir = b.cfg.Path(b.cfg.StagingDir)

	log := b.Log.WithField("build", bi.ID)
	start := time.Now()

	defer func() {
		bi.Duration = time.Since(start).Truncate(time.Millisecond)
		if err != nil {
			bi.ErrBuild = err.Error()
		}
		if b.cfg.RecordPath == "" {
			return
		}
		perr := persistBuildInfo(bi, b.cfg.Path(b.cfg.RecordPath))
		if perr != nil {
			if err == nil {
				err = buildErr("could not persist build info", perr)
			} else {
				log.WithError(perr).Error("could not persist build info")
			}
		}
	}()

	log.WithField("step", "build").Infof("running `%s` (runner=%s)", b.cfg.BuildCommand[0], b.cfg.Runner)
	var buildLog bytes.Buffer
	code, err := b.buildRunner.Run(ctx, runner.Command{
		Args:  b.cfg.BuildCommand,
		Dir:   b.cfg.WorkDir,
		Env:   b.env,
		Image: b.cfg.Image,
		Log:   log.WithField("step", "build"),
	}, io.MultiWriter(b.out, &buildLog))
	bi.Log = buildLog.String()
	if err != nil {
		return bi, types.ErrBuild{ExitCode: types.BuildFailureExitCode, Err: err}
	}
	bi.ExitCode = code
	if code != 0 {
		log.WithFields(logrus.Fields{"step": "build", "exit_code": code}).Error("build command failed")
		return bi, types.ErrBuild{ExitCode: code}
	}

	sources, err := b.collect()
	if err != nil {
		return bi, err
	}
	log.WithField("step", "collect").Infof("found %d artifact(s)", len(sources))

	err = b.promote(ctx, bi, sources, log)
	if err != nil {
		return bi, err
	}

	log.WithField("step", "package").Infof("running `%s`", b.cfg.PackageCommand[0])
	code, err = b.packageRunner.Run(ctx, runner.Command{
		Args: b.cfg.PackageCommand,
		Dir:  b.cfg.Path(b.cfg.PackageDir),
		Log:  log.WithField("step", "package"),
	}, b.out)
	if err != nil {
		return bi, types.ErrPackage{ExitCode: types.BuildFailureExitCode, Err: err}
	}
	bi.PackageExitCode = code
	if code != 0 {
		log.WithFields(logrus.Fields{"step": "package", "exit_code": code}).Error("package command failed")
		return bi, types.ErrPackage{ExitCode: code}
	}

	log.Infof("finished after %s", time.Since(start).Truncate(time.Millisecond))
	return bi, nil
}

// collect returns the regular files matching the artifact pattern, in
// lexical order.
func (b *Builder) collect() ([]string, error) {
	pattern := filepath.Join(b.cfg.Path(b.cfg.ArtifactsDir), b.cfg.ArtifactPattern)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, buildErr("could not glob artifacts", err)
	}

	var sources []string
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			return nil, buildErr("could not stat artifact", err)
		}
		if fi.Mode().IsRegular() {
			sources = append(sources, m)
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w matching %s", types.ErrNoArtifacts, pattern)
	}
	return sources, nil
}

// promote copies every source into the staging directory and records the
// outcome of each copy in bi. All sources are attempted even if some fail.
func (b *Builder) promote(ctx context.Context, bi *types.BuildInfo, sources []string, log *logrus.Entry) error {
	staging := bi.StagingDir

	if b.cfg.ClearStaging {
		err := b.fs.Clear(staging)
		if err != nil {
			return buildErr("could not clear staging dir", err)
		}
	}
	err := b.fs.Create(staging)
	if err != nil {
		return buildErr("could not create staging dir", err)
	}

	failed := make(map[string]error)
	for _, src := range sources {
		a := types.Artifact{
			Name:        filepath.Base(src),
			Source:      src,
			Destination: filepath.Join(staging, filepath.Base(src)),
		}

		err := b.promoteOne(ctx, &a)
		if err != nil {
			a.Err = err.Error()
			failed[a.Name] = err
			log.WithFields(logrus.Fields{"step": "promote", "artifact": a.Name}).WithError(err).Error("could not promote artifact")
		} else {
			log.WithFields(logrus.Fields{"step": "promote", "artifact": a.Name}).
				Infof("promoted to %s (%s)", a.Destination, units.HumanSize(float64(a.Size)))
		}
		bi.Artifacts = append(bi.Artifacts, a)
	}

	if len(failed) > 0 {
		return types.ErrPromote{Failed: failed}
	}
	return nil
}

// promoteOne copies a and verifies the copy landed by reading it back.
func (b *Builder) promoteOne(ctx context.Context, a *types.Artifact) error {
	err := b.fs.Copy(ctx, a.Source, a.Destination)
	if err != nil {
		return err
	}

	fi, err := os.Stat(a.Destination)
	if err != nil {
		return err
	}
	a.Size = fi.Size()

	a.SHA256, err = utils.HashFile(a.Destination)
	return err
}

// ReadBuildInfo returns the BuildInfo persisted at path.
func ReadBuildInfo(path string) (*types.BuildInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	bi := new(types.BuildInfo)
	err = json.Unmarshal(data, bi)
	if err != nil {
		return nil, err
	}
	return bi, nil
}

// persistBuildInfo persists the JSON-serialized version of bi to path.
func persistBuildInfo(bi *types.BuildInfo, path string) error {
	// we don't want to persist the whole build logs in the record
	rec := *bi
	rec.Log = ""

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	err = utils.EnsureDirExists(filepath.Dir(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

func buildErr(s string, e error) error {
	s = "build: " + s
	if e != nil {
		return fmt.Errorf("%s; %w", s, e)
	}
	return errors.New(s)
}
