// Copyright 2024-present The sql-infer Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/sql-infer/devtools/pkg/builder"
	"github.com/sql-infer/devtools/pkg/config"
	"github.com/sql-infer/devtools/pkg/filesystem"
	_ "github.com/sql-infer/devtools/pkg/filesystem/plainfs"
	_ "github.com/sql-infer/devtools/pkg/filesystem/reflinkfs"
	"github.com/sql-infer/devtools/pkg/logging"
	"github.com/sql-infer/devtools/pkg/runner"
	_ "github.com/sql-infer/devtools/pkg/runner/docker"
	_ "github.com/sql-infer/devtools/pkg/runner/local"
	"github.com/sql-infer/devtools/pkg/types"
	"github.com/urfave/cli"
)

// BuildFailureStatus is the exit status of the process when the build
// command fails.
const BuildFailureStatus = 255

// Version contains the release version of the tools, adhering to SemVer.
const Version = "0.1.0"

// VersionSuffix is populated at build-time with -ldflags and typically
// contains the Git SHA1 of the tip that the binary is build from. It is then
// appended to Version.
var VersionSuffix string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newApp(ctx).Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context) *cli.App {
	var (
		configPath   string
		workDir      string
		buildCmd     string
		runnerName   string
		image        string
		env          cli.StringSlice
		artifactsDir string
		pattern      string
		staging      string
		clearStaging bool
		fsName       string
		packageCmd   string
		packageDir   string
		record       string
		timeout      string
		jsonResult   bool
		verbose      bool
		logLevel     string
		logFormat    string
	)

	cli.AppHelpTemplate = fmt.Sprintf(`%s
DEFAULTS:
   Without a config file the build runs 'sh ./build.sh', promotes builds/sql-infer*
   into sql-infer-py/bin and packages with 'poetry build -o dist' inside sql-infer-py.

EXAMPLES:
   1. Build inside a pinned toolchain image and keep a record of the build.

      $ {{.HelpName}} --runner docker --image rust:1.80 --record dist/build_info.json

   2. Write a config file with the defaults, to edit it.

      $ {{.HelpName}} init
`, cli.AppHelpTemplate)

	app := cli.NewApp()
	app.ErrWriter = os.Stderr
	app.Name = "sqlinfer-build"
	app.Usage = "build sql-infer and package it for distribution"
	app.Version = Version
	if VersionSuffix != "" {
		app.Version = Version + "-" + VersionSuffix[:7]
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "load configuration from `FILE` (default: " + config.FileName + " if present)",
			Destination: &configPath,
		},
		cli.StringFlag{
			Name:        "work-dir, C",
			Usage:       "directory to build in; relative paths are resolved against it",
			Destination: &workDir,
		},
		cli.StringFlag{
			Name:        "build-cmd",
			Usage:       "the build command, split on whitespace",
			Destination: &buildCmd,
		},
		cli.StringFlag{
			Name:        "runner",
			Usage:       "how to run the build command. Options: " + strings.Join(runner.Names(), ", "),
			Destination: &runnerName,
		},
		cli.StringFlag{
			Name:        "image",
			Usage:       "container image the build runs in (docker runner)",
			Destination: &image,
		},
		cli.StringSliceFlag{
			Name:  "env, e",
			Usage: "extra KEY=VALUE environment variable for the build command. Can be repeated",
			Value: &env,
		},
		cli.StringFlag{
			Name:        "artifacts-dir",
			Usage:       "directory the build leaves its artifacts in",
			Destination: &artifactsDir,
		},
		cli.StringFlag{
			Name:        "pattern",
			Usage:       "glob matching the artifact file names",
			Destination: &pattern,
		},
		cli.StringFlag{
			Name:        "staging",
			Usage:       "the directory artifacts are promoted into",
			Destination: &staging,
		},
		cli.BoolFlag{
			Name:        "clear-staging",
			Usage:       "remove the staging directory before promoting artifacts",
			Destination: &clearStaging,
		},
		cli.StringFlag{
			Name:        "filesystem",
			Usage:       "how artifacts are copied. Options: " + strings.Join(filesystem.Names(), ", "),
			Destination: &fsName,
		},
		cli.StringFlag{
			Name:        "package-cmd",
			Usage:       "the packaging command, split on whitespace",
			Destination: &packageCmd,
		},
		cli.StringFlag{
			Name:        "package-dir",
			Usage:       "directory the packaging command runs in",
			Destination: &packageDir,
		},
		cli.StringFlag{
			Name:        "record",
			Usage:       "write the JSON build record to `FILE`",
			Destination: &record,
		},
		cli.StringFlag{
			Name:        "timeout",
			Usage:       "abort the whole run after this long, accepts values as defined at https://golang.org/pkg/time/#ParseDuration (default: no timeout)",
			Destination: &timeout,
		},
		cli.BoolFlag{
			Name:        "json-result",
			Usage:       "output the build record in JSON format to STDOUT; command output goes to STDERR",
			Destination: &jsonResult,
		},
		cli.BoolFlag{
			Name:        "verbose",
			Usage:       "log every build step",
			Destination: &verbose,
		},
		cli.StringFlag{
			Name:        "log-level",
			Usage:       "debug, info, warn or error (default: warn, info with --verbose)",
			Destination: &logLevel,
		},
		cli.StringFlag{
			Name:        "log-format",
			Usage:       "text or json",
			Value:       string(logging.FormatText),
			Destination: &logFormat,
		},
	}

	app.Action = func(c *cli.Context) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		b := cfg.Build

		// flags override the configuration
		if workDir != "" {
			b.WorkDir = workDir
		}
		if buildCmd != "" {
			b.BuildCommand = strings.Fields(buildCmd)
		}
		if runnerName != "" {
			b.Runner = runnerName
		}
		if image != "" {
			b.Image = image
		}
		if artifactsDir != "" {
			b.ArtifactsDir = artifactsDir
		}
		if pattern != "" {
			b.ArtifactPattern = pattern
		}
		if staging != "" {
			b.StagingDir = staging
		}
		if clearStaging {
			b.ClearStaging = true
		}
		if fsName != "" {
			b.FileSystem = fsName
		}
		if packageCmd != "" {
			b.PackageCommand = strings.Fields(packageCmd)
		}
		if packageDir != "" {
			b.PackageDir = packageDir
		}
		if record != "" {
			b.RecordPath = record
		}
		// flag pairs come last, so they win over configured ones
		b.Env = append(b.Env, env...)

		if logLevel == "" {
			logLevel = "warn"
			if verbose {
				logLevel = "info"
			}
		}
		logger, err := logging.New(logging.Options{
			Level:  logLevel,
			Format: logging.Format(logFormat),
			Out:    c.App.ErrWriter,
		})
		if err != nil {
			return err
		}

		var cmdOut io.Writer = c.App.Writer
		if jsonResult {
			cmdOut = c.App.ErrWriter
		}

		bld, err := builder.New(b, builder.WithLogger(logger), builder.WithOutput(cmdOut))
		if err != nil {
			return err
		}

		runCtx := ctx
		if timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return err
			}
			if d > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
		}

		bi, err := bld.Run(runCtx)

		if jsonResult {
			out, jerr := json.MarshalIndent(bi, "", "  ")
			if jerr != nil {
				return jerr
			}
			fmt.Fprintf(c.App.Writer, "%s\n", out)
		} else if err == nil {
			for _, a := range bi.Promoted() {
				fmt.Fprintf(c.App.Writer, "Promoted %s (%s)\n", a.Destination, units.HumanSize(float64(a.Size)))
			}
			fmt.Fprintf(c.App.Writer, "Build finished after %s\n", bi.Duration)
		}

		var errBuild types.ErrBuild
		if errors.As(err, &errBuild) {
			if errBuild.Err != nil {
				fmt.Fprintln(c.App.ErrWriter, errBuild.Err)
			}
			return cli.NewExitError("Build failure.", BuildFailureStatus)
		}
		return err
	}

	app.Commands = []cli.Command{
		{
			Name:  "init",
			Usage: "Write a config file with the default settings.",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "path",
					Usage: "where to write the config file",
					Value: config.FileName,
				},
			},
			Action: func(c *cli.Context) error {
				path := c.String("path")
				written, err := config.WriteDefault(path)
				if err != nil {
					return err
				}
				if !written {
					fmt.Fprintf(c.App.ErrWriter, "%s already exists.\nExiting...\n", path)
					return nil
				}
				fmt.Fprintf(c.App.ErrWriter, "Written config to %s!\n", path)
				return nil
			},
		},
	}

	return app
}
