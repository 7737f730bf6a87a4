// Package dotdir manages the .gauntlet/ and ~/.gauntlet directories.
//
// The dotdir holds everything a run leaves behind: the memory database,
// config.toml, credentials.toml, and generated prompt artifacts under
// results/. A local .gauntlet/ directory takes precedence over ~/.gauntlet
// so state can be kept per project.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the gauntlet directory.
	dirName = ".gauntlet"

	// resultsDirName is the subdirectory for generated prompt artifacts.
	resultsDirName = "results"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .gauntlet/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.gauntlet/ dir
//  3. Home ~/.gauntlet/ dir
//
// Returns an empty path when no override is provided and neither
// directory exists.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating gauntlet directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if local := filepath.Join(cwd, dirName); dirExists(local) {
		return filepath.Abs(local)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if homeDir := filepath.Join(home, dirName); dirExists(homeDir) {
		return filepath.Abs(homeDir)
	}

	return "", nil
}

// Results returns the artifacts directory under the resolved dotdir,
// creating it on first use. Returns an empty path when no dotdir
// resolves.
func (m *Manager) Results(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return dir, err
	}

	results := filepath.Join(dir, resultsDirName)
	if err := os.MkdirAll(results, 0o755); err != nil {
		return "", fmt.Errorf("creating results directory %s: %w", results, err)
	}

	return results, nil
}

// dirExists checks whether path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
