// Package atomicfs provides the rename-with-fallback primitive the
// fetch/cache engine uses to move a freshly cloned scratch directory
// into its final cache slot, adapted from the teacher's
// internal/fs.go (renameWithFallback, CopyDir, CopyFile).
package atomicfs

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// RenameWithFallback renames src to dest, falling back to a recursive
// copy-then-remove when the two paths live on different devices (the
// common cross-device rename failure) or, on Windows, when src is a
// directory.
func RenameWithFallback(src, dest string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s", src)
	}

	if runtime.GOOS == "windows" && fi.IsDir() {
		if err := CopyDir(src, dest); err != nil {
			return err
		}
		return errors.Wrapf(os.RemoveAll(src), "cannot delete %s", src)
	}

	if err := os.Rename(src, dest); err == nil {
		return nil
	} else if !isCrossDevice(err) {
		return errors.Wrapf(err, "cannot rename %s to %s", src, dest)
	}

	var cerr error
	if fi.IsDir() {
		cerr = CopyDir(src, dest)
	} else {
		cerr = CopyFile(src, dest)
	}
	if cerr != nil {
		return errors.Wrapf(cerr, "fallback copy failed: cannot rename %s to %s", src, dest)
	}
	return errors.Wrapf(os.RemoveAll(src), "cannot delete %s", src)
}

func isCrossDevice(err error) bool {
	lerr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	errno, ok := lerr.Err.(syscall.Errno)
	return ok && errno == syscall.EXDEV
}

// CopyDir recursively copies src to dest, preserving file modes.
// Directory traversal uses godirwalk, which avoids the extra lstat per
// entry that a plain os.ReadDir-based walk would need.
func CopyDir(src, dest string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s", src)
	}
	if err := os.MkdirAll(dest, fi.Mode()); err != nil {
		return errors.Wrapf(err, "cannot mkdir %s", dest)
	}

	return godirwalk.Walk(src, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == src {
				return nil
			}
			rel, err := filepath.Rel(src, path)
			if err != nil {
				return err
			}
			target := filepath.Join(dest, rel)

			switch {
			case de.IsSymlink():
				return nil
			case de.IsDir():
				info, err := os.Lstat(path)
				if err != nil {
					return err
				}
				return os.MkdirAll(target, info.Mode())
			default:
				return CopyFile(path, target)
			}
		},
		Unsorted: true,
	})
}

// CopyFile copies a single file, preserving its permission bits.
func CopyFile(src, dest string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	destFile, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, srcFile); err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dest, info.Mode())
}

// IsDir reports whether name is an existing directory.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}
