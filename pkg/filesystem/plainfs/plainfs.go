package plainfs

import (
	"context"
	"fmt"
	"os"

	"github.com/sql-infer/devtools/pkg/filesystem"
	"github.com/sql-infer/devtools/pkg/utils"
)

// PlainFS implements the FileSystem interface. It uses plain `cp` and `mkdir`
// commands.
type PlainFS struct{}

func init() {
	filesystem.Registry["plain"] = PlainFS{}
}

// Create creates a new directory at path
func (fs PlainFS) Create(path string) error {
	return utils.EnsureDirExists(path)
}

// Copy copies src to dst with `cp -p`
func (fs PlainFS) Copy(ctx context.Context, src, dst string) error {
	out, err := utils.RunCmd(ctx, []string{"cp", "-p", src, dst})
	if err != nil {
		return fmt.Errorf("%s (%s)", err, out)
	}
	return nil
}

// Clear deletes the contents of path
func (fs PlainFS) Clear(path string) error {
	err := utils.RemoveDirContents(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
