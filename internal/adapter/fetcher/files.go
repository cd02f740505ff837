package fetcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cwygoda/nftfolder/internal/domain"
)

// EnsureDir creates dir and its parents if absent. An existing path that is
// not a directory is an error.
func EnsureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return os.MkdirAll(dir, 0755)
	default:
		return err
	}
}

// Exists reports whether path is an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func createExclusive(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return file, nil
}

// finish closes file and removes it when the fetch failed, so a later run
// does not skip a partial asset.
func finish(file *os.File, path string, err error) error {
	if closeErr := file.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("%w: close: %w", domain.ErrWrite, closeErr)
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}
