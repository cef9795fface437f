package config

import (
	"os"
	"strconv"
)

// Environment variable names. Credentials only ever come from the
// environment; the rest are overrides for container deployments where
// editing the mounted config file is inconvenient.
const (
	EnvMeuralUsername  = "MEURAL_USERNAME"
	EnvMeuralPassword  = "MEURAL_PASSWORD" //nolint:gosec // env var name, not a credential
	EnvUpdateFrequency = "UPDATE_FREQUENCY_MINS"
	EnvVerifySSLCerts  = "VERIFY_SSL_CERTS"
	EnvLogLevel        = "LOG_LEVEL"
	EnvInContainer     = "IN_CONTAINER"
)

// Env holds raw values read from the environment.
type Env struct {
	Username        string
	Password        string
	UpdateFrequency string
	VerifySSLCerts  string
	LogLevel        string
	InContainer     bool
}

// ReadEnv reads all recognized environment variables.
func ReadEnv() Env {
	return Env{
		Username:        os.Getenv(EnvMeuralUsername),
		Password:        os.Getenv(EnvMeuralPassword),
		UpdateFrequency: os.Getenv(EnvUpdateFrequency),
		VerifySSLCerts:  os.Getenv(EnvVerifySSLCerts),
		LogLevel:        os.Getenv(EnvLogLevel),
		InContainer:     envBool(os.Getenv(EnvInContainer)),
	}
}

// CredentialsFromEnv returns the Meural login from the environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		Username: os.Getenv(EnvMeuralUsername),
		Password: os.Getenv(EnvMeuralPassword),
	}
}

// applyEnvOverrides mutates cfg with any environment overrides found.
func applyEnvOverrides(cfg *Config, env Env) {
	if env.UpdateFrequency != "" {
		if mins, err := strconv.Atoi(env.UpdateFrequency); err == nil {
			cfg.Settings.UpdateFrequencyMins = mins
		}
	}

	if env.VerifySSLCerts != "" {
		v := envBool(env.VerifySSLCerts)
		cfg.Settings.VerifySSLCerts = &v
	}

	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
}

func envBool(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}

	return v
}
