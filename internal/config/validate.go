package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix everything in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateTasks(cfg)...)
	errs = append(errs, validateSettings(&cfg.Settings)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateTasks(cfg *Config) []error {
	var errs []error

	if len(cfg.Sync) == 0 {
		errs = append(errs, errors.New("config: no sync tasks defined; add at least one entry under \"sync\""))
	}

	for i, task := range cfg.Sync {
		if task.ICloudAlbum == "" {
			errs = append(errs, fmt.Errorf("config: sync task %d: icloud_album is required", i))
		} else if !strings.Contains(task.ICloudAlbum, "#") {
			errs = append(errs, fmt.Errorf("config: sync task %d: icloud_album %q has no album token after '#'", i, task.ICloudAlbum))
		}

		if len(task.MeuralPlaylists) == 0 {
			errs = append(errs, fmt.Errorf("config: sync task %d (%s): no meural_playlist entries", i, task.ICloudAlbum))
		}

		seen := make(map[string]bool, len(task.MeuralPlaylists))

		for _, pl := range task.MeuralPlaylists {
			if pl.Name == "" {
				errs = append(errs, fmt.Errorf("config: sync task %d (%s): playlist with empty name", i, task.ICloudAlbum))
				continue
			}

			if seen[pl.Name] {
				errs = append(errs, fmt.Errorf("config: sync task %d (%s): playlist %q listed twice", i, task.ICloudAlbum, pl.Name))
			}

			seen[pl.Name] = true

			if pl.Name == cfg.Settings.QuarantinePlaylist {
				errs = append(errs, fmt.Errorf("config: sync task %d (%s): playlist %q is reserved for quarantined items", i, task.ICloudAlbum, pl.Name))
			}
		}
	}

	return errs
}

func validateSettings(s *Settings) []error {
	var errs []error

	if s.UpdateFrequencyMins <= 0 {
		errs = append(errs, fmt.Errorf("config: update_frequency_mins must be positive, got %d", s.UpdateFrequencyMins))
	}

	if s.QuarantinePlaylist == "" {
		errs = append(errs, errors.New("config: quarantine_playlist must not be empty"))
	}

	switch s.Orientation {
	case "", "vertical", "horizontal":
	default:
		errs = append(errs, fmt.Errorf("config: orientation %q (want vertical or horizontal)", s.Orientation))
	}

	for _, d := range []struct{ name, value string }{
		{"timeout", s.Timeout},
		{"upload_timeout", s.UploadTimeout},
	} {
		if d.value == "" {
			continue
		}

		if _, err := time.ParseDuration(d.value); err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", d.name, err))
		}
	}

	return errs
}

func validateLogging(l *Logging) []error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return []error{fmt.Errorf("config: unknown log level %q (want debug, info, warn, or error)", l.Level)}
	}
}
