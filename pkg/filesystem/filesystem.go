package filesystem

import (
	"context"
	"fmt"
	"sort"
)

// Registry maps the filesystem name to its implementation
var Registry = make(map[string]FileSystem)

// FileSystem defines the filesystem operations needed to promote build
// artifacts into a staging directory.
type FileSystem interface {
	// Create creates a new directory in the given path, along with any
	// missing parents. It is not an error if the directory exists.
	Create(path string) error

	// Copy copies the regular file src to dst, preserving its mode.
	// dst is overwritten if it exists.
	Copy(ctx context.Context, src, dst string) error

	// Clear removes every entry under the directory path, leaving path
	// itself in place. Implementors should not return an error when the
	// path does not exist.
	Clear(path string) error
}

// Get returns the registered filesystem denoted by s. If it doesn't exist,
// an error is returned.
func Get(s string) (FileSystem, error) {
	fs, ok := Registry[s]
	if !ok {
		return nil, fmt.Errorf("unknown filesystem '%s' (%v)", s, Names())
	}
	return fs, nil
}

// Names returns the names of all registered filesystems, sorted.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
