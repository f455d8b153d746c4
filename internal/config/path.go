package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading "~" to the current user's home directory, then expands
// $VAR references. "~user" forms are left alone.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return os.ExpandEnv(path)
}
