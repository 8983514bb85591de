package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the locations filecat uses when the config file does not say
// otherwise.
type Paths struct {
	ConfigPath string
	BaseDir    string // database, local model store, keys
	LogDir     string
}

// DefaultPaths resolves Paths from the environment. Lookup order for each:
//
//	config: FILECAT_CONFIG_PATH, $XDG_CONFIG_HOME/filecat.toml, ~/.config/filecat.toml
//	data:   FILECAT_HOME, $XDG_DATA_HOME/filecat, ~/.local/share/filecat
func DefaultPaths() (Paths, error) {
	configPath, err := resolve("FILECAT_CONFIG_PATH", "XDG_CONFIG_HOME", "filecat.toml", ".config")
	if err != nil {
		return Paths{}, fmt.Errorf("resolving config path: %w", err)
	}
	baseDir, err := resolve("FILECAT_HOME", "XDG_DATA_HOME", "filecat", ".local", "share")
	if err != nil {
		return Paths{}, fmt.Errorf("resolving data directory: %w", err)
	}
	return Paths{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// resolve returns $override verbatim, else $xdgVar/name, else ~/homeRel.../name.
func resolve(override, xdgVar, name string, homeRel ...string) (string, error) {
	if p := os.Getenv(override); p != "" {
		return p, nil
	}
	if dir := os.Getenv(xdgVar); filepath.IsAbs(dir) {
		return filepath.Join(dir, name), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append(append([]string{home}, homeRel...), name)...), nil
}
