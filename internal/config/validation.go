package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/logging"
)

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return invalid("server", err)
	}

	if err := validatePath(config.Site.Root); err != nil {
		return invalid("site.root", err)
	}
	if strings.TrimSpace(config.Site.Manifest) == "" {
		return invalid("site.manifest", fmt.Errorf("empty path"))
	}

	if config.Templates.Opening == "" || config.Templates.Closing == "" {
		return invalid("templates", fmt.Errorf("opening and closing markers must not be empty"))
	}

	if config.Metrics.Enabled {
		if err := validateAddress(config.Metrics.Address); err != nil {
			return invalid("metrics.address", err)
		}
		if config.Metrics.Address == config.Server.Address {
			return invalid("metrics.address", fmt.Errorf("%s is already used by the server", config.Metrics.Address))
		}
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return invalid("log.level", err)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return invalid("log.format", fmt.Errorf("unknown format %q, expected text or json", config.Log.Format))
	}

	return nil
}

func invalid(field string, err error) error {
	return errors.WrapConfig(err, errors.ErrCodeConfigInvalid,
		fmt.Sprintf("invalid configuration: %s: %v", field, err)).
		WithContext("field", field)
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	if config.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", config.Threads)
	}

	return validateAddress(config.Address)
}

func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("address %q: %w", addr, err)
	}
	if port == "" {
		return fmt.Errorf("address %q has no port", addr)
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
