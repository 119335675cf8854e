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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sql-infer/devtools/pkg/config"
	"github.com/sql-infer/devtools/pkg/logging"
	"github.com/sql-infer/devtools/pkg/query"
	"github.com/urfave/cli"
)

// Version contains the release version of the tools, adhering to SemVer.
const Version = "0.1.0"

// VersionSuffix is populated at build-time with -ldflags and typically
// contains the Git SHA1 of the tip that the binary is build from.
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
		addr       string
		timeout    string
		configPath string
		logLevel   string
	)

	cli.AppHelpTemplate = fmt.Sprintf(`%s
QUERIES:
   A query argument prefixed with @, or naming an existing file, is read from
   that file. Anything else is sent as-is.

PARAMETERS:
   Parameters of 'run' are typed by inference (true/false, integers, decimals,
   RFC3339 timestamps, text) unless prefixed with text:, bool:, int:,
   decimal: or timestamp:.

EXAMPLES:
   1. Check a query against a service on another host.

      $ {{.HelpName}} --addr db-dev.example.org:8001 check 'SELECT id FROM users'

   2. Run a query with a decimal and a text parameter.

      $ {{.HelpName}} run @queries/orders.sql 10.50 text:42
`, cli.AppHelpTemplate)

	app := cli.NewApp()
	app.ErrWriter = os.Stderr
	app.Name = "sqlinfer-query"
	app.Usage = "send queries to a running sql-infer service"
	app.Version = Version
	if VersionSuffix != "" {
		app.Version = Version + "-" + VersionSuffix[:7]
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "addr, a",
			Usage:       "host:port or URL of the service (default: " + query.DefaultAddr + ")",
			EnvVar:      "SQLINFER_ADDR",
			Destination: &addr,
		},
		cli.StringFlag{
			Name:        "timeout",
			Usage:       "abort every request after this long, accepts values as defined at https://golang.org/pkg/time/#ParseDuration (default: no timeout)",
			Destination: &timeout,
		},
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "load configuration from `FILE` (default: " + config.FileName + " if present)",
			Destination: &configPath,
		},
		cli.StringFlag{
			Name:        "log-level",
			Usage:       "debug, info, warn or error",
			Value:       "warn",
			Destination: &logLevel,
		},
	}

	// newClient builds the client from the global flags, falling back to
	// the configuration
	newClient := func(c *cli.Context) (*query.Client, *logrus.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		q := cfg.Query
		if addr != "" {
			q.Addr = addr
		}
		if timeout != "" {
			q.Timeout, err = time.ParseDuration(timeout)
			if err != nil {
				return nil, nil, err
			}
		}
		err = q.Validate()
		if err != nil {
			return nil, nil, err
		}

		logger, err := logging.New(logging.Options{Level: logLevel, Out: c.App.ErrWriter})
		if err != nil {
			return nil, nil, err
		}
		client, err := query.New(query.Config{Addr: q.Addr, Timeout: q.Timeout, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return client, logger, nil
	}

	app.Commands = []cli.Command{
		{
			Name:      "check",
			Usage:     "Check that the service can infer the types of one or more queries.",
			ArgsUsage: "QUERY|@FILE...",
			Action: func(c *cli.Context) error {
				if !c.Args().Present() {
					return errors.New("at least one query must be provided")
				}
				client, _, err := newClient(c)
				if err != nil {
					return err
				}
				for _, arg := range c.Args() {
					q, err := query.LoadQuery(arg)
					if err != nil {
						return err
					}
					err = printResult(c, client, client.Check(ctx, q))
					if err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Name:      "run",
			Usage:     "Execute a query with parameters.",
			ArgsUsage: "QUERY|@FILE [PARAM...]",
			Action: func(c *cli.Context) error {
				if !c.Args().Present() {
					return errors.New("a query must be provided")
				}
				q, err := query.LoadQuery(c.Args().First())
				if err != nil {
					return err
				}
				params, err := query.ParseParams(c.Args().Tail())
				if err != nil {
					return err
				}
				client, _, err := newClient(c)
				if err != nil {
					return err
				}
				return printResult(c, client, client.Execute(ctx, q, params))
			},
		},
		{
			Name:      "check-dir",
			Usage:     "Check every " + query.QueryExt + " file in one or more directories and print a JSON report.",
			ArgsUsage: "DIR...",
			Action: func(c *cli.Context) error {
				if !c.Args().Present() {
					return errors.New("at least one directory must be provided")
				}
				client, logger, err := newClient(c)
				if err != nil {
					return err
				}
				report, err := client.CheckDir(ctx, c.Args())
				if err != nil {
					return err
				}
				out, err := report.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s\n", out)

				for _, f := range report.Skipped {
					logger.Warnf("skipped %s", f)
				}
				if report.Failed > 0 {
					return fmt.Errorf("%d of %d queries failed", report.Failed, len(report.Results))
				}
				return nil
			},
		},
	}

	return app
}

func printResult(c *cli.Context, client *query.Client, r query.Result) error {
	err := query.Print(c.App.Writer, r)
	if err != nil && query.IsTimeout(err) {
		return fmt.Errorf("%s did not answer in time; %s", client.BaseURL(), err)
	}
	return err
}
