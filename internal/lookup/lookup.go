// Package lookup resolves program names against a search path.
package lookup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is returned when no executable file matches a name.
var ErrNotFound = errors.New("executable file not found in search path")

// Resolver finds executables on a filesystem. It mirrors the search rules
// of execvp: a name containing a slash is tried directly, anything else is
// tried in each search directory in order.
type Resolver struct {
	fs   afero.Fs
	dirs []string
}

// New returns a resolver over fsys searching dirs. An empty dir entry
// means the current directory.
func New(fsys afero.Fs, dirs []string) *Resolver {
	return &Resolver{fs: fsys, dirs: dirs}
}

// FromEnv returns a resolver over the real filesystem using $PATH, or
// searchPath when it is non-empty.
func FromEnv(searchPath string) *Resolver {
	if searchPath == "" {
		searchPath = os.Getenv("PATH")
	}
	return New(afero.NewOsFs(), filepath.SplitList(searchPath))
}

// Dirs returns the search directories.
func (r *Resolver) Dirs() []string { return r.dirs }

// LookPath returns the path of the executable for name. If name only
// matches files that are not executable, the error wraps fs.ErrPermission.
func (r *Resolver) LookPath(name string) (string, error) {
	if name == "" {
		return "", ErrNotFound
	}
	if strings.Contains(name, "/") {
		if err := r.check(name); err != nil {
			return "", err
		}
		return name, nil
	}
	// A match that cannot be executed is reported like execvp's EACCES,
	// but only if nothing later on the path is executable.
	var denied string
	for _, dir := range r.dirs {
		if dir == "" {
			dir = "."
		}
		path := filepath.Join(dir, name)
		err := r.check(path)
		if err == nil {
			return path, nil
		}
		if denied == "" && errors.Is(err, fs.ErrPermission) {
			denied = path
		}
	}
	if denied != "" {
		return "", fmt.Errorf("%s: %w", denied, fs.ErrPermission)
	}
	return "", ErrNotFound
}

// Executable reports whether name resolves to an executable file.
func (r *Resolver) Executable(name string) bool {
	_, err := r.LookPath(name)
	return err == nil
}

func (r *Resolver) check(path string) error {
	info, err := r.fs.Stat(path)
	if err != nil {
		return err
	}
	if m := info.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}
