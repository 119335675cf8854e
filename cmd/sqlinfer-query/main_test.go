package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sql-infer/devtools/pkg/query"
	"github.com/sql-infer/devtools/pkg/query/querytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	app := newApp(context.Background())
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"sqlinfer-query"}, args...))
	return out.String(), err
}

func TestCheckCmd(t *testing.T) {
	s := querytest.NewServer()
	defer s.Close()

	out, err := runApp(t, "--addr", s.Addr(), "check", "SELECT 1", "SELECT 2")
	require.NoError(t, err)
	assert.Equal(t, "{\"ok\":true}\n{\"ok\":true}\n", out)

	reqs := s.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "SELECT 1", reqs[0].Query)
	assert.Equal(t, "SELECT 2", reqs[1].Query)
}

func TestCheckCmd_File(t *testing.T) {
	s := querytest.NewServer()
	defer s.Close()

	path := filepath.Join(t.TempDir(), "users.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT id FROM users"), 0644))

	_, err := runApp(t, "--addr", s.Addr(), "check", "@"+path)
	require.NoError(t, err)

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "SELECT id FROM users", reqs[0].Query)
}

func TestCheckCmd_Undecodable(t *testing.T) {
	s := querytest.NewServer()
	defer s.Close()
	s.Respond(query.CheckPath, 500, "Internal Server Error")

	out, err := runApp(t, "--addr", s.Addr(), "check", "SELECT")
	require.NoError(t, err)
	assert.Equal(t, "500\nInternal Server Error\n", out)
}

func TestRunCmd(t *testing.T) {
	s := querytest.NewServer()
	defer s.Close()
	s.Respond(query.RunPath, 200, `[{"total": 10.50}]`)

	out, err := runApp(t, "--addr", s.Addr(), "run", "SELECT $1, $2, $3", "10.50", "text:42", "true")
	require.NoError(t, err)
	assert.Equal(t, "[{\"total\":10.50}]\n", out)

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, query.RunPath, reqs[0].Path)
	assert.JSONEq(t, `{"query": "SELECT $1, $2, $3", "params": [10.50, "42", true]}`, string(reqs[0].Body))
}

func TestRunCmd_InvalidParam(t *testing.T) {
	s := querytest.NewServer()
	defer s.Close()

	_, err := runApp(t, "--addr", s.Addr(), "run", "SELECT $1", "int:many")
	assert.ErrorIs(t, err, query.ErrInvalidParam)
	assert.Empty(t, s.Requests())
}

func TestCheckDirCmd(t *testing.T) {
	s := querytest.NewServer()
	defer s.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.sql"), []byte("SELECT 1"), 0644))

	out, err := runApp(t, "--addr", s.Addr(), "check-dir", dir)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users": {"status": 200, "body": {"ok": true}}}`, out)

	s.Respond(query.CheckPath, 502, "Bad Gateway")
	_, err = runApp(t, "--addr", s.Addr(), "check-dir", dir)
	assert.EqualError(t, err, "1 of 1 queries failed")
}

func TestTransportFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	out, err := runApp(t, "--addr", addr, "check", "SELECT 1")
	assert.Error(t, err)
	assert.Empty(t, out)
}

func TestMissingArgs(t *testing.T) {
	for _, cmd := range []string{"check", "run", "check-dir"} {
		_, err := runApp(t, "--addr", "localhost:1", cmd)
		assert.Error(t, err, cmd)
	}
}

func TestInvalidAddr(t *testing.T) {
	_, err := runApp(t, "--addr", "ftp://example.org", "check", "SELECT 1")
	assert.ErrorIs(t, err, query.ErrInvalidAddr)
}
