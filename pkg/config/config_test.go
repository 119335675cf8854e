package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sql-infer/devtools/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, query.DefaultAddr, cfg.Query.Addr)
	assert.NoError(t, cfg.Build.Validate())
	assert.NoError(t, cfg.Query.Validate())
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	written, err := WriteDefault(path)
	require.NoError(t, err)
	assert.True(t, written)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	// an existing file is never overwritten
	require.NoError(t, os.WriteFile(path, []byte("query:\n  addr: example.org:9000\n"), 0644))
	written, err = WriteDefault(path)
	require.NoError(t, err)
	assert.False(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "query:\n  addr: example.org:9000\n", string(data))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
build:
  build-command: [make, release]
  runner: docker
  image: rust:1.80
  env:
    - TARGET=aarch64-unknown-linux-gnu
    - RUSTFLAGS=-C target-cpu=native
  clear-staging: true
query:
  addr: http://infer.internal:8001
  timeout: 30s
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"make", "release"}, cfg.Build.BuildCommand)
	assert.Equal(t, "docker", cfg.Build.Runner)
	assert.Equal(t, "rust:1.80", cfg.Build.Image)
	assert.Equal(t, []string{"TARGET=aarch64-unknown-linux-gnu", "RUSTFLAGS=-C target-cpu=native"}, cfg.Build.Env)

	env, err := ParseEnv(cfg.Build.Env)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"TARGET":    "aarch64-unknown-linux-gnu",
		"RUSTFLAGS": "-C target-cpu=native",
	}, env)
	assert.True(t, cfg.Build.ClearStaging)
	assert.Equal(t, "sql-infer*", cfg.Build.ArtifactPattern)
	assert.Equal(t, "http://infer.internal:8001", cfg.Query.Addr)
	assert.Equal(t, 30*time.Second, cfg.Query.Timeout)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SQLINFER_QUERY_ADDR", "127.0.0.1:9001")
	t.Setenv("SQLINFER_QUERY_TIMEOUT", "5s")
	t.Setenv("SQLINFER_BUILD_ARTIFACT_PATTERN", "sql-infer-*")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9001", cfg.Query.Addr)
	assert.Equal(t, 5*time.Second, cfg.Query.Timeout)
	assert.Equal(t, "sql-infer-*", cfg.Build.ArtifactPattern)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBuild_Validate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(b *Build)
	}{
		{"no build command", func(b *Build) { b.BuildCommand = nil }},
		{"no package command", func(b *Build) { b.PackageCommand = nil }},
		{"no pattern", func(b *Build) { b.ArtifactPattern = "" }},
		{"bad pattern", func(b *Build) { b.ArtifactPattern = "sql-infer[" }},
		{"no staging", func(b *Build) { b.StagingDir = "" }},
		{"no runner", func(b *Build) { b.Runner = "" }},
		{"no filesystem", func(b *Build) { b.FileSystem = "" }},
		{"bad env", func(b *Build) { b.Env = []string{"TARGET"} }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := Default().Build
			c.modify(&b)
			assert.Error(t, b.Validate())
		})
	}
}

func TestParseEnv(t *testing.T) {
	cases := []struct {
		In       []string
		Expected map[string]string
		Err      bool
	}{
		{[]string{"A=b"}, map[string]string{"A": "b"}, false},
		{[]string{"A=b=c", "D="}, map[string]string{"A": "b=c", "D": ""}, false},
		{[]string{"Target=x", "TARGET=y"}, map[string]string{"Target": "x", "TARGET": "y"}, false},
		{[]string{"A=1", "A=2"}, map[string]string{"A": "2"}, false},
		{nil, map[string]string{}, false},
		{[]string{"A"}, nil, true},
		{[]string{"=b"}, nil, true},
	}

	for _, c := range cases {
		actual, err := ParseEnv(c.In)
		if c.Err {
			assert.Error(t, err, "%v", c.In)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, c.Expected, actual)
	}
}

func TestBuild_Path(t *testing.T) {
	b := Build{WorkDir: "/repo"}
	assert.Equal(t, "/repo/builds", b.Path("builds"))
	assert.Equal(t, "/abs/dist", b.Path("/abs/dist"))
}

func TestQuery_Validate(t *testing.T) {
	assert.Error(t, Query{}.Validate())
	assert.Error(t, Query{Addr: "localhost:8001", Timeout: -time.Second}.Validate())
	assert.NoError(t, Query{Addr: "localhost:8001"}.Validate())
}
