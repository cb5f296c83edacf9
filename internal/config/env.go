package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// DefaultEnvFile is where SMTP and Pushover credentials are read from when no
// other path is given.
const DefaultEnvFile = "~/etc/backupkit.env"

// LoadEnvFile reads a dotenv credentials file. Keys are looked up
// case-insensitively and process environment variables of the same name take
// precedence over the file.
func LoadEnvFile(path string) (*viper.Viper, error) {
	if path == "" {
		path = DefaultEnvFile
	}
	path = ExpandPath(path)

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("credentials file not found: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
	}
	return v, nil
}
