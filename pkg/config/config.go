// Package config loads the configuration of the build and query tools.
//
// Values are resolved in order of precedence: explicit command line flags
// (applied by the callers), SQLINFER_* environment variables, the config
// file, and finally the defaults returned by Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/sql-infer/devtools/pkg/query"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file looked up in the working
// directory when none is given explicitly.
const FileName = "sqlinfer.yaml"

// EnvPrefix prefixes every environment variable read by Load, e.g.
// SQLINFER_QUERY_ADDR or SQLINFER_BUILD_RUNNER.
const EnvPrefix = "SQLINFER"

// Build holds the builder configuration.
type Build struct {
	// WorkDir is the directory the build command runs in. All other
	// relative paths are resolved against it.
	WorkDir      string            `mapstructure:"work-dir" yaml:"work-dir"`
	BuildCommand []string          `mapstructure:"build-command" yaml:"build-command"`
	Runner       string            `mapstructure:"runner" yaml:"runner"`
	Image        string            `mapstructure:"image" yaml:"image,omitempty"`

	// Env lists extra KEY=VALUE environment variables for the build
	// command. viper lowercases map keys, so this stays a list.
	Env []string `mapstructure:"env" yaml:"env,omitempty"`

	ArtifactsDir    string `mapstructure:"artifacts-dir" yaml:"artifacts-dir"`
	ArtifactPattern string `mapstructure:"artifact-pattern" yaml:"artifact-pattern"`

	StagingDir   string `mapstructure:"staging-dir" yaml:"staging-dir"`
	ClearStaging bool   `mapstructure:"clear-staging" yaml:"clear-staging"`
	FileSystem   string `mapstructure:"filesystem" yaml:"filesystem"`

	PackageCommand []string `mapstructure:"package-command" yaml:"package-command"`
	PackageDir     string   `mapstructure:"package-dir" yaml:"package-dir"`

	// RecordPath, if set, is where the JSON build record is written.
	RecordPath string `mapstructure:"record" yaml:"record,omitempty"`
}

// Query holds the query client configuration.
type Query struct {
	// Addr is the service location, either host:port or a base URL.
	Addr string `mapstructure:"addr" yaml:"addr"`

	// Timeout bounds every request. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Config is the contents of a configuration file.
type Config struct {
	Build Build `mapstructure:"build" yaml:"build"`
	Query Query `mapstructure:"query" yaml:"query"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Build: Build{
			WorkDir:         ".",
			BuildCommand:    []string{"sh", "./build.sh"},
			Runner:          "local",
			ArtifactsDir:    "builds",
			ArtifactPattern: "sql-infer*",
			StagingDir:      filepath.Join("sql-infer-py", "bin"),
			FileSystem:      "plain",
			PackageCommand:  []string{"poetry", "build", "-o", "dist"},
			PackageDir:      "sql-infer-py",
		},
		Query: Query{
			Addr: query.DefaultAddr,
		},
	}
}

// Load reads the configuration file at path, overlaid with the environment.
// If path is empty, FileName is looked up in the working directory and its
// absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot parse configuration; %s", err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("cannot parse configuration; %s", err)
			}
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("build.work-dir", d.Build.WorkDir)
	v.SetDefault("build.build-command", d.Build.BuildCommand)
	v.SetDefault("build.runner", d.Build.Runner)
	v.SetDefault("build.image", d.Build.Image)
	v.SetDefault("build.artifacts-dir", d.Build.ArtifactsDir)
	v.SetDefault("build.artifact-pattern", d.Build.ArtifactPattern)
	v.SetDefault("build.staging-dir", d.Build.StagingDir)
	v.SetDefault("build.clear-staging", d.Build.ClearStaging)
	v.SetDefault("build.filesystem", d.Build.FileSystem)
	v.SetDefault("build.package-command", d.Build.PackageCommand)
	v.SetDefault("build.package-dir", d.Build.PackageDir)
	v.SetDefault("build.record", d.Build.RecordPath)
	v.SetDefault("query.addr", d.Query.Addr)
	v.SetDefault("query.timeout", d.Query.Timeout)
}

// Validate returns an error if b cannot drive a build.
func (b Build) Validate() error {
	if len(b.BuildCommand) == 0 {
		return errors.New("build command must be provided")
	}
	if len(b.PackageCommand) == 0 {
		return errors.New("package command must be provided")
	}
	if b.ArtifactPattern == "" {
		return errors.New("artifact pattern must be provided")
	}
	if _, err := filepath.Match(b.ArtifactPattern, ""); err != nil {
		return fmt.Errorf("invalid artifact pattern '%s'; %s", b.ArtifactPattern, err)
	}
	if b.StagingDir == "" {
		return errors.New("staging dir must be provided")
	}
	if b.Runner == "" {
		return errors.New("runner must be provided")
	}
	if b.FileSystem == "" {
		return errors.New("filesystem must be provided")
	}
	if _, err := ParseEnv(b.Env); err != nil {
		return err
	}
	return nil
}

// ParseEnv turns KEY=VALUE pairs into a map. Later pairs override earlier
// ones with the same name.
func ParseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("invalid env entry '%s', expected KEY=VALUE", p)
		}
		env[kv[0]] = kv[1]
	}
	return env, nil
}

// Path resolves p against WorkDir, leaving absolute paths untouched.
func (b Build) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.WorkDir, p)
}

// Validate returns an error if q has no address.
func (q Query) Validate() error {
	if q.Addr == "" {
		return errors.New("addr must be provided")
	}
	if q.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	return nil
}

// WriteDefault renders Default as YAML into path. It returns false without
// touching the file if path already exists.
func WriteDefault(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, err
	}

	out, err := yaml.Marshal(Default())
	if err != nil {
		return false, err
	}

	err = os.WriteFile(path, out, 0644)
	if err != nil {
		return false, err
	}
	return true, nil
}
