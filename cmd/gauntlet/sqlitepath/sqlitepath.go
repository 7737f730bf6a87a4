package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("GAUNTLET_SQLITE")); envPath != "" {
		return envPath, nil
	}
	if envPath := strings.TrimSpace(os.Getenv("GAUNTLET_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find gauntlet SQLite database; pass --sqlite")
}

func sqliteCandidates() []string {
	candidates := []string{
		"gauntlet.db",
		"gauntlet.sqlite",
		filepath.Join(".gauntlet", "gauntlet.db"),
		filepath.Join(".gauntlet", "gauntlet.sqlite"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".gauntlet", "gauntlet.db"),
			filepath.Join(home, ".gauntlet", "gauntlet.sqlite"),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "gauntlet", "gauntlet.db"),
			filepath.Join(xdgHome, "gauntlet", "gauntlet.sqlite"),
		}, candidates...)
	}

	return candidates
}
