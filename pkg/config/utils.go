package config

import (
	"os"
	"path/filepath"
)

// FindEnv resolves an environment file name. An absolute name is used as
// is; a relative one is looked up in the working directory and then in
// each parent, so commands run from a subdirectory still find the
// project's file. An empty name means ".env".
func FindEnv(filename string) (string, error) {
	if filename == "" {
		filename = ".env"
	}
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err != nil {
			return "", err
		}
		return filename, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findUp(dir, filename)
}

func findUp(dir, filename string) (string, error) {
	for {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
