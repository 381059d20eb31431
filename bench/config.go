package bench

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config holds the tool-wide defaults that can be set once in a TOML
// file instead of being repeated on every invocation.
type Config struct {
	// Docker is the docker client binary to invoke
	Docker string `toml:"docker"`

	// Image is the ProteoWizard container image
	Image string `toml:"image"`

	// MsconvertArgs are extra arguments appended to every msconvert run,
	// as a single shell-quoted string
	MsconvertArgs string `toml:"msconvert_args"`

	// Polarity is the default scan polarity (positive or negative)
	Polarity string `toml:"polarity"`

	// Jobs is the default number of datasets converted in parallel
	Jobs int `toml:"jobs"`
}

// DefaultImage is the public ProteoWizard image with vendor reader support.
// Running it implies agreeing to the vendor licenses, hence the name.
const DefaultImage = "chambm/pwiz-skyline-i-agree-to-the-vendor-licenses"

func DefaultConfig() Config {
	return Config{
		Docker: "docker",
		Image:  DefaultImage,
		Jobs:   1,
	}
}

// LoadConfig reads the config file at path, or, when path is empty, the
// first of $XDG_CONFIG_HOME/imzconv/config.toml and ~/.imzconv.toml that
// exists. A missing default file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return cfg, errors.Wrapf(err, "opening config file %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config file %s", path)
	}

	if cfg.Docker == "" {
		cfg.Docker = "docker"
	}
	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = 1
	}

	return cfg, nil
}

func defaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidate := filepath.Join(xdg, "imzconv", "config.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".imzconv.toml")
}
