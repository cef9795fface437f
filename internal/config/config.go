// Package config implements YAML configuration loading, validation, and
// path resolution for meural-sync. Values resolve through a three-layer
// override chain (defaults -> config file -> environment), with credentials
// supplied exclusively through the environment so they never land in a
// config file that might be committed or mounted read-only.
package config

import "time"

// Config is the top-level configuration structure parsed from a YAML file.
// Sync tasks are immutable for the process lifetime; changing them
// requires a restart, which keeps every cycle's view of the task list
// consistent with the ledger it was started against.
type Config struct {
	Sync     []SyncTask `yaml:"sync"`
	Settings Settings   `yaml:"settings"`
	Logging  Logging    `yaml:"logging"`
}

// SyncTask maps one shared iCloud album onto an ordered list of Meural
// playlists. The order matters: uploads are attempted playlist by playlist,
// and the name a shared upload carries is derived once per fingerprint.
type SyncTask struct {
	ICloudAlbum     string        `yaml:"icloud_album"`
	MeuralPlaylists []PlaylistRef `yaml:"meural_playlist"`
}

// PlaylistRef names a destination playlist within a sync task.
// UniqueUpload forces a playlist-specific copy of each image instead of
// sharing one upload across playlists, so deleting the image from this
// playlist later never removes a copy another playlist still shows.
type PlaylistRef struct {
	Name         string `yaml:"name"`
	UniqueUpload bool   `yaml:"unique_upload"`
}

// Settings controls engine behavior: polling cadence, the reserved
// quarantine playlist, dry-run, and destination client knobs.
type Settings struct {
	UpdateFrequencyMins int    `yaml:"update_frequency_mins"`
	QuarantinePlaylist  string `yaml:"quarantine_playlist"`
	Orientation         string `yaml:"orientation"`
	DryRun              bool   `yaml:"dry_run"`
	VerifySSLCerts      *bool  `yaml:"verify_ssl_certs"`
	Timeout             string `yaml:"timeout"`
	UploadTimeout       string `yaml:"upload_timeout"`
}

// Logging controls log output: level and optional rotating log file.
type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Credentials holds the Meural account login, read from the environment.
type Credentials struct {
	Username string
	Password string
}

// PollInterval returns the cycle sleep duration.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.UpdateFrequencyMins) * time.Minute
}

// RequestTimeout returns the metadata-call timeout, falling back to the
// default when the configured string is empty or unparseable strings have
// already been rejected by Validate.
func (s Settings) RequestTimeout() time.Duration {
	return parseDurationOr(s.Timeout, defaultTimeout)
}

// UploadRequestTimeout returns the upload-call timeout. Uploads move real
// image bytes and get a longer budget than metadata calls.
func (s Settings) UploadRequestTimeout() time.Duration {
	return parseDurationOr(s.UploadTimeout, defaultUploadTimeout)
}

// VerifyTLS reports whether destination TLS certificates are verified.
// Unset means verify: disabling verification must be an explicit choice.
func (s Settings) VerifyTLS() bool {
	if s.VerifySSLCerts == nil {
		return true
	}

	return *s.VerifySSLCerts
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}

	return d
}
