package upload

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const maxNameAttempts = 1000

var (
	leadingSeparators = regexp.MustCompile(`^[\\/]+`)
	separatorRuns     = regexp.MustCompile(`[\\/]+`)
)

// LocalStore writes fallback copies under a root directory (the vault).
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// NormalizeFolder strips leading separators and collapses separator runs to
// a single '/'.
func NormalizeFolder(folder string) string {
	folder = leadingSeparators.ReplaceAllString(strings.TrimSpace(folder), "")
	folder = separatorRuns.ReplaceAllString(folder, "/")
	return strings.TrimSuffix(folder, "/")
}

// Save writes data to folder/name below the root, creating folder when
// absent. An existing file is never overwritten: name-1.ext, name-2.ext, ...
// are tried instead. The returned path is root-relative with '/' separators.
func (l *LocalStore) Save(folder, name string, data []byte) (string, error) {
	folder = NormalizeFolder(folder)
	if folder != "" && !filepath.IsLocal(filepath.FromSlash(folder)) {
		return "", fmt.Errorf("local folder %q escapes the vault", folder)
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	dir := filepath.Join(l.root, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = base + "-" + strconv.Itoa(i) + ext
		}

		err := writeExclusive(filepath.Join(dir, candidate), data)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return path.Join(folder, candidate), nil
	}
	return "", fmt.Errorf("no free file name for %q in %q", name, folder)
}

func writeExclusive(p string, data []byte) error {
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}
