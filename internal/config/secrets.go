package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns the value of envName, or the trimmed contents of the
// file named by envName_FILE when that is set (docker/k8s secret mounts).
func ResolveSecret(envName string) (string, error) {
	path := os.Getenv(envName + "_FILE")
	if path == "" {
		return os.Getenv(envName), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s_FILE: %w", envName, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// ResolveDSN returns the store DSN from REEL_STORE_DSN(_FILE), falling back
// to the value from reel.yaml. DSNs usually embed a password, so the
// environment wins.
func ResolveDSN(cfg *Config) (string, error) {
	dsn, err := ResolveSecret("REEL_STORE_DSN")
	if err != nil {
		return "", err
	}
	if dsn != "" {
		return dsn, nil
	}
	return cfg.Store.DSN, nil
}
