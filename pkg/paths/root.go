// Package paths locates the senv configuration root and the fragment files
// that make up a profile.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigDir is the conventional name of the fragment directory.
const DefaultConfigDir = ".senv"

// ErrNoRootFound is matched by errors returned when no root can be located.
var ErrNoRootFound = errors.New("no config root found")

// NoRootFoundError lists every directory that was tried.
type NoRootFoundError struct {
	ConfigDir string
	Tried     []string
}

func (e *NoRootFoundError) Error() string {
	return fmt.Sprintf("no `%s` directory found via `%s`", e.ConfigDir, strings.Join(e.Tried, " | "))
}

// Is makes errors.Is(err, ErrNoRootFound) succeed.
func (e *NoRootFoundError) Is(target error) bool {
	return target == ErrNoRootFound
}

// RootOptions controls root resolution.
type RootOptions struct {
	// Root is used verbatim when set.
	Root string

	// SearchPath is a colon-separated list of candidate directories. When
	// empty, every ancestor of WorkDir is tried instead.
	SearchPath string

	// WorkDir defaults to the process working directory.
	WorkDir string

	// ConfigDir defaults to DefaultConfigDir.
	ConfigDir string
}

// ResolveRoot returns the absolute configuration root.
func ResolveRoot(opts RootOptions) (string, error) {
	if opts.Root != "" {
		return realpath(opts.Root), nil
	}

	configDir := opts.ConfigDir
	if configDir == "" {
		configDir = DefaultConfigDir
	}

	candidates, err := SearchPath(opts)
	if err != nil {
		return "", err
	}

	for _, dir := range candidates {
		info, err := os.Stat(filepath.Join(dir, configDir))
		if err == nil && info.IsDir() {
			return dir, nil
		}
	}

	return "", &NoRootFoundError{ConfigDir: configDir, Tried: candidates}
}

// SearchPath returns the candidate root directories in the order they are tried.
func SearchPath(opts RootOptions) ([]string, error) {
	var candidates []string

	if opts.SearchPath != "" {
		for _, entry := range strings.Split(opts.SearchPath, ":") {
			if entry == "" {
				continue
			}
			candidates = append(candidates, realpath(entry))
		}
		return candidates, nil
	}

	dir := opts.WorkDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	dir = realpath(dir)

	for {
		candidates = append(candidates, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return candidates, nil
}

// realpath makes path absolute and resolves symlinks when it exists.
func realpath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
