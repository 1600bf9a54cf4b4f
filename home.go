package sim

import (
	"os"
	"path/filepath"
)

// HomeEnv names the environment variable that relocates the gosim home directory.
const HomeEnv = "GOSIM_HOME"

// Home returns the directory gosim keeps its results database and event log
// in: $GOSIM_HOME when set, ~/.gosim otherwise, and a directory under the
// system temp dir when no user home can be found.
func Home() string {
	if v := os.Getenv(HomeEnv); v != "" {
		return v
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".gosim")
	}
	return filepath.Join(os.TempDir(), "gosim")
}

// HomePath joins elem onto Home.
func HomePath(elem ...string) string {
	return filepath.Join(append([]string{Home()}, elem...)...)
}

// DefaultDBPath is where the SQLite store lives unless a path is configured.
func DefaultDBPath() string {
	return HomePath("results.db")
}

// DefaultEventLogPath is where scheduled runs append worker events.
func DefaultEventLogPath() string {
	return HomePath("events.jsonl")
}

// EnsureHome creates the home directory and returns its path.
func EnsureHome() (string, error) {
	dir := Home()
	return dir, os.MkdirAll(dir, 0o755)
}
