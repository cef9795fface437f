package config

import (
	"os"
	"path/filepath"
)

// Container mount points. When IN_CONTAINER is set, the image and config
// directories are fixed volume mounts instead of working-directory
// relative paths.
const (
	containerImageDir  = "/images"
	containerConfigDir = "/config"
)

// Config and ledger file names inside the config directory.
const (
	configFileName = "config.yaml"
	ledgerFileName = "records.json"
	lockFileName   = "meural-sync.lock"
)

// Paths resolves the filesystem locations the process depends on.
type Paths struct {
	ImageDir  string
	ConfigDir string
}

// ResolvePaths returns the image and config directories for the current
// deployment mode.
func ResolvePaths(inContainer bool) Paths {
	if inContainer {
		return Paths{ImageDir: containerImageDir, ConfigDir: containerConfigDir}
	}

	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return Paths{
		ImageDir:  filepath.Join(wd, "images"),
		ConfigDir: filepath.Join(wd, "config"),
	}
}

// ConfigFile returns the path of the YAML config file.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, configFileName)
}

// LedgerFile returns the path of the persisted ledger document.
func (p Paths) LedgerFile() string {
	return filepath.Join(p.ConfigDir, ledgerFileName)
}

// LockFile returns the path of the single-instance lock file.
func (p Paths) LockFile() string {
	return filepath.Join(p.ConfigDir, lockFileName)
}

// Verify checks that both directories exist. Missing directories are a
// deployment error (unmounted volume), not something to create silently.
func (p Paths) Verify() error {
	for _, dir := range []string{p.ImageDir, p.ConfigDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return &MissingDirError{Dir: dir}
		}
	}

	return nil
}

// MissingDirError reports a required directory that was not found.
type MissingDirError struct {
	Dir string
}

func (e *MissingDirError) Error() string {
	return "config: required directory not found: " + e.Dir
}
