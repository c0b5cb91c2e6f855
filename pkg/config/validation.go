package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := ValidateID(config.ID); err != nil {
		return errors.NewConfigError("invalid id", err)
	}

	if len(config.WandaContainers) == 0 {
		return errors.NewConfigError("wanda_containers cannot be empty", nil)
	}
	seen := make(map[string]int)
	for i, name := range config.WandaContainers {
		if name == "" {
			return errors.NewConfigError(fmt.Sprintf("empty container name at index %d", i), nil)
		}
		if prev, exists := seen[name]; exists {
			return errors.NewConfigError(
				fmt.Sprintf("duplicate container name '%s' found at indices %d and %d", name, prev, i), nil)
		}
		seen[name] = i
	}

	for key, label := range map[string]string{"wanda_label": config.WandaLabel, "hosts_label": config.HostsLabel} {
		if err := ValidateLabel(label); err != nil {
			return errors.NewConfigError("invalid "+key, err)
		}
	}

	if config.DockerTimeout <= 0 {
		return errors.NewConfigError("docker_timeout must be positive", nil)
	}
	if config.StartupTimeout <= 0 {
		return errors.NewConfigError("startup_timeout must be positive", nil)
	}
	if config.ParallelJobs < 1 {
		return errors.NewConfigError("parallel_jobs must be at least 1", nil)
	}

	if err := ValidateURL(config.WandaURL); err != nil {
		return errors.NewConfigError("invalid wanda_url", err)
	}
	if config.Credentials != nil && config.Credentials.URL != "" {
		if err := ValidateURL(config.Credentials.URL); err != nil {
			return errors.NewConfigError("invalid credentials url", err)
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	valid := false
	for _, level := range validLogLevels {
		if config.LogLevel == level {
			valid = true
			break
		}
	}
	if !valid {
		return errors.NewConfigError(fmt.Sprintf("invalid log level: %s", config.LogLevel), nil).
			WithContext("valid_levels", "debug, info, warn, error")
	}

	return nil
}

// ValidateID validates the installation id used in container names
func ValidateID(id string) error {
	if id == "" {
		return errors.NewValidationError("id cannot be empty", nil)
	}
	if len(id) > 64 {
		return errors.NewValidationError("id cannot exceed 64 characters", nil)
	}
	for _, char := range id {
		if !isValidIDChar(char) {
			return errors.NewValidationError("id contains invalid characters: only letters, numbers, hyphens, and underscores are allowed", nil)
		}
	}
	return nil
}

// ValidateLabel validates a "key=value" label filter
func ValidateLabel(label string) error {
	key, value, found := strings.Cut(label, "=")
	if !found || key == "" || value == "" {
		return errors.NewValidationError("label must have the form key=value: "+label, nil)
	}
	return nil
}

func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.NewValidationError("invalid URL: "+raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewValidationError("URL scheme must be http or https: "+raw, nil)
	}
	if u.Host == "" {
		return errors.NewValidationError("URL host cannot be empty: "+raw, nil)
	}
	return nil
}

// Helper function to check if character is valid for ID
func isValidIDChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == '-' || char == '_'
}
