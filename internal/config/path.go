package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath points kiosk images at a system-wide config without a flag.
const EnvConfigPath = "PROCTOR_CONFIG"

// ResolvePath picks the config file: --config, then $PROCTOR_CONFIG,
// then $XDG_CONFIG_HOME/proctor/config.jsonc, then ~/.config.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if fromEnv := strings.TrimSpace(os.Getenv(EnvConfigPath)); fromEnv != "" {
		return fromEnv, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "proctor", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "proctor", "config.jsonc"), nil
}

// EnvPath returns the secrets file that sits next to the config file.
func EnvPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), ".env")
}
