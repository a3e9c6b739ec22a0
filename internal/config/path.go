package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath overrides the config location for a whole session, sitting
// between the --config flag and XDG resolution. Useful for systemd units
// that manage several dictation profiles.
const EnvConfigPath = "VIBE_WRITER_CONFIG"

const configFileName = "config.conf"

// ResolvePath picks the config file location: explicit --config path first,
// then $VIBE_WRITER_CONFIG, then $XDG_CONFIG_HOME/vibe-writer/config.conf,
// then ~/.config/vibe-writer/config.conf.
func ResolvePath(explicit string) (string, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		return p, nil
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}

	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func configDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "vibe-writer"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", "vibe-writer"), nil
}
