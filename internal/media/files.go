// Package media holds the I/O collaborators the editors depend on: a file
// existence check for clip sources and an audio prober for mixer tracks.
package media

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileChecker reports whether a source media file is accessible.
type FileChecker interface {
	Check(ctx context.Context, path string) error
}

// CheckerFunc adapts a function to FileChecker.
type CheckerFunc func(ctx context.Context, path string) error

// Check implements FileChecker.
func (f CheckerFunc) Check(ctx context.Context, path string) error {
	return f(ctx, path)
}

// OSFileChecker stats files on the local filesystem.
// Relative paths are resolved against Root when it is set.
type OSFileChecker struct {
	Root string
}

// Check returns an error unless path names a readable regular file.
func (c OSFileChecker) Check(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(c.Root, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &fs.PathError{Op: "check", Path: path, Err: fmt.Errorf("is a directory")}
	}
	return nil
}
