package pushover

import (
	"fmt"
	"strings"

	"github.com/fgeck/backupkit/internal/config"
	"github.com/fgeck/backupkit/internal/models"
)

// keyLength is the length of Pushover application tokens and user keys.
const keyLength = 30

// LoadCredentials reads PUSHOVER_TOKEN and PUSHOVER_USER (and the optional
// PUSHOVER_DEVICE) from the dotenv file at path.
func LoadCredentials(path string) (models.PushoverConfig, error) {
	v, err := config.LoadEnvFile(path)
	if err != nil {
		return models.PushoverConfig{}, err
	}

	cfg := models.PushoverConfig{
		Token:  strings.TrimSpace(v.GetString("pushover_token")),
		User:   strings.TrimSpace(v.GetString("pushover_user")),
		Device: strings.TrimSpace(v.GetString("pushover_device")),
		Title:  DefaultTitle,
	}
	if err := ValidateCredentials(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ValidateCredentials checks the token and user key format.
func ValidateCredentials(cfg models.PushoverConfig) error {
	if len(cfg.Token) != keyLength {
		return fmt.Errorf("%w: PUSHOVER_TOKEN must be %d characters", ErrInvalidCredentials, keyLength)
	}
	if len(cfg.User) != keyLength {
		return fmt.Errorf("%w: PUSHOVER_USER must be %d characters", ErrInvalidCredentials, keyLength)
	}
	return nil
}
