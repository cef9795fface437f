package config

import "time"

// Default values for configuration options. These are "layer 0" of the
// override chain: a deployment with an empty settings block gets a
// working daemon out of the box.
const (
	defaultUpdateFrequencyMins = 30
	defaultQuarantinePlaylist  = "iCloud Pending Removal"
	defaultOrientation         = "vertical"
	defaultLogLevel            = "info"
	defaultTimeout             = 15 * time.Second
	defaultUploadTimeout       = 60 * time.Second
)

// Default returns a Config populated with all default values. It is used
// both as the starting point for YAML decoding (so unset fields retain
// defaults) and as the fallback when no config file exists yet.
func Default() *Config {
	return &Config{
		Settings: Settings{
			UpdateFrequencyMins: defaultUpdateFrequencyMins,
			QuarantinePlaylist:  defaultQuarantinePlaylist,
			Orientation:         defaultOrientation,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
