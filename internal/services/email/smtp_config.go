package email

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fgeck/backupkit/internal/config"
	"github.com/fgeck/backupkit/internal/models"
)

// LoadSMTPConfig reads SMTP_SERVER, SMTP_PORT, SMTP_TOKEN, FROM_EMAIL and
// TO_EMAIL from the dotenv file at path and validates them.
func LoadSMTPConfig(path string) (models.SMTPConfig, error) {
	v, err := config.LoadEnvFile(path)
	if err != nil {
		return models.SMTPConfig{}, err
	}

	cfg := models.SMTPConfig{
		Server:    strings.TrimSpace(v.GetString("smtp_server")),
		Token:     strings.TrimSpace(v.GetString("smtp_token")),
		FromEmail: strings.TrimSpace(v.GetString("from_email")),
		ToEmail:   strings.TrimSpace(v.GetString("to_email")),
	}

	if raw := strings.TrimSpace(v.GetString("smtp_port")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid SMTP port: %q", raw)
		}
		cfg.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("missing required SMTP configuration: %w", err)
	}
	return cfg, nil
}
