package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// HomeDirName is the per-user config directory under $HOME.
const HomeDirName = ".tlsprobe"

var ErrNotFound = errors.New("config file not found")

// SearchDirs lists the directories searched for config files by name.
func SearchDirs() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, HomeDirName))
	}
	return dirs
}

// Find resolves name to an existing file. name is tried as given, then
// relative to each of SearchDirs.
func Find(name string) (string, error) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		for _, dir := range SearchDirs() {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", errors.Wrapf(ErrNotFound, "%s (searched %s)", name, strings.Join(candidates, ", "))
}

// Load finds and reads the named config.
func Load(name string) (*Config, error) {
	path, err := Find(name)
	if err != nil {
		return nil, err
	}
	return ReadConfig(path)
}

// List maps file names to paths for every valid config in dir, or in
// SearchDirs when dir is empty. Earlier directories win on name clashes.
func List(dir string) (map[string]string, error) {
	dirs := []string{dir}
	if dir == "" {
		dirs = SearchDirs()
	}

	configs := map[string]string{}
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err != nil {
			if dir != "" {
				return nil, errors.Wrapf(err, "listing %s", d)
			}
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !e.Type().IsRegular() || !(strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".config")) {
				continue
			}
			if _, seen := configs[name]; seen {
				continue
			}
			path := filepath.Join(d, name)
			if _, err := ReadConfig(path); err != nil {
				continue
			}
			configs[name] = path
		}
	}
	return configs, nil
}
