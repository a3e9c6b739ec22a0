package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Loaded is the result of resolving and reading the vibe-writer config file.
//
// A missing file is not an error and carries no warning: Exists is false and
// Config holds Default(). Warnings collect every value the parser or
// validator had to coerce; startup proceeds on defaults either way.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves the config location, reads it, and parses it over Default().
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	content, err := readConfigFile(path)
	if err != nil {
		return Loaded{}, err
	}
	if content == nil {
		return Loaded{Path: path, Config: Default()}, nil
	}

	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	return Loaded{
		Path:     path,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// readConfigFile returns nil content for a missing file and an error only for
// real read failures (permissions, IO).
func readConfigFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		return content, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	default:
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
}
