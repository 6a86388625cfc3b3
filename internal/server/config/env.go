package config

import (
	"errors"
	"io/fs"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// parseEnv loads envFile into the process environment (variables already
// set win) and decodes SB_* variables over config. Unset variables leave
// their fields untouched. Lists are separated by ';'.
func parseEnv(config *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := envdecode.Decode(config); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return err
	}
	return nil
}
