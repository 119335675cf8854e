package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// PathIsDir returns an error if p does not exist or is not a directory.
func PathIsDir(p string) error {
	fi, err := os.Stat(p)
	if err != nil {
		return err
	}

	if !fi.IsDir() {
		return errors.New("Path " + p + " is not a directory")
	}

	return nil
}

// EnsureDirExists verifies path is a directory and creates it, along with
// any missing parents, if it doesn't exist.
func EnsureDirExists(path string) error {
	fi, err := os.Stat(path)
	if err == nil {
		if !fi.IsDir() {
			return errors.New(path + " is not a directory")
		}
	} else {
		if os.IsNotExist(err) {
			err = os.MkdirAll(path, 0755)
			if err != nil {
				return err
			}
		} else {
			return err
		}
	}

	return nil
}

// RemoveDirContents removes every entry under dir, leaving dir itself in
// place.
func RemoveDirContents(dir string) error {
	items, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, item := range items {
		err = os.RemoveAll(filepath.Join(dir, item.Name()))
		if err != nil {
			return err
		}
	}
	return nil
}

// RunCmd runs the shell command denoted by args, using the first
// element as the command and the remained as its arguments.
// It returns the combined stderr/stdout output of the command.
func RunCmd(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// HashFile returns the hex encoded SHA-256 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
