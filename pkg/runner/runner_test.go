package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet_Unknown(t *testing.T) {
	_, err := Get("podman")
	assert.Error(t, err)
}

func TestCommand(t *testing.T) {
	c := Command{
		Args: []string{"poetry", "build", "-o", "dist"},
		Env:  map[string]string{"B": "2", "A": "1"},
	}
	assert.Equal(t, "poetry build -o dist", c.String())
	assert.Equal(t, []string{"A=1", "B=2"}, c.EnvList())
	assert.Empty(t, Command{}.EnvList())
}
