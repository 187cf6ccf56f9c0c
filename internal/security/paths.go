// Package security validates operator-supplied filesystem paths before the
// daemon reads or writes settings files under them.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that resolve outside the allowed root.
var ErrOutsideRoot = errors.New("path escapes allowed root")

// canonical returns the absolute, symlink-free form of path. Trailing
// components that do not exist yet are joined onto the deepest existing
// ancestor, so a symlinked parent cannot smuggle a new file out of the root.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	var rest []string
	for dir := abs; ; {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = append([]string{filepath.Base(dir)}, rest...)
		dir = parent
	}
}

// ResolveWithin returns the canonical form of path after checking that it
// lies inside root. root must exist. path itself may not exist yet.
func ResolveWithin(path, root string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	canonRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	if canonRoot, err = filepath.Abs(canonRoot); err != nil {
		return "", err
	}
	canonPath, err := canonical(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(canonRoot, canonPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s is not under %s", ErrOutsideRoot, path, root)
	}
	return canonPath, nil
}
