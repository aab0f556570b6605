package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Secret environment keys read from the process environment or the .env file.
const (
	EnvAPIKey           = "PROCTOR_API_KEY"
	EnvStorageAccessKey = "PROCTOR_STORAGE_ACCESS_KEY"
	EnvStorageSecretKey = "PROCTOR_STORAGE_SECRET_KEY"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	secrets, err := readSecrets(EnvPath(resolvedPath))
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	applySecrets(&base, secrets)

	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// readSecrets merges the optional .env file with the process environment.
// Process environment wins.
func readSecrets(envPath string) (map[string]string, error) {
	secrets := map[string]string{}

	fileValues, err := godotenv.Read(envPath)
	switch {
	case err == nil:
		for key, value := range fileValues {
			secrets[key] = value
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read env file %q: %w", envPath, err)
	}

	for _, key := range []string{EnvAPIKey, EnvStorageAccessKey, EnvStorageSecretKey} {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			secrets[key] = value
		}
	}
	return secrets, nil
}

func applySecrets(cfg *Config, secrets map[string]string) {
	cfg.Backend.APIKey = strings.TrimSpace(secrets[EnvAPIKey])
	cfg.Storage.AccessKey = strings.TrimSpace(secrets[EnvStorageAccessKey])
	cfg.Storage.SecretKey = strings.TrimSpace(secrets[EnvStorageSecretKey])
}
