package config

import (
	"path/filepath"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/pack"
)

const (
	// UserConfigPath is the default path to the packsync user config.
	UserConfigPath = "~/.packsync.yaml"

	// InitialUserConfigVersion is the first version of the packsync user
	// config. Config files that do not specify a version will default to this
	// version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the supported version of the packsync
	// user config of the current binary.
	SupportedUserConfigVersion = "v1alpha1"
)

// User contains the defaults for installs run by the user. Empty fields fall
// back to the defaults of the install command.
type User struct {
	Version string `json:"version,omitempty"`

	// PackFolder is where packs are installed. Relative paths are relative
	// to the directory containing the config file.
	PackFolder string `json:"packFolder,omitempty"`

	ManifestFile string `json:"manifestFile,omitempty"`
	Side         string `json:"side,omitempty"`
	Parallelism  int    `json:"parallelism,omitempty"`

	// NonInteractive disables the prompts for optional files. Options
	// decides which groups are installed instead.
	NonInteractive bool            `json:"nonInteractive,omitempty"`
	Options        map[string]bool `json:"options,omitempty"`

	// MetricsFile is where run metrics are written in the Prometheus
	// textfile format.
	MetricsFile string `json:"metricsFile,omitempty"`

	S3Region   string `json:"s3Region,omitempty"`
	S3Endpoint string `json:"s3Endpoint,omitempty"`
}

// validate checks the fields that the YAML decoder can't.
func (u User) validate(path string) error {
	if u.Side != "" {
		if _, err := pack.ParseSide(u.Side); err != nil {
			return errors.NewFriendlyError("Invalid config %q: %s", path, err)
		}
	}

	if u.Parallelism < 0 {
		return errors.NewFriendlyError("Invalid parallelism in %q: "+
			"it must be a positive number, but got %d.", path, u.Parallelism)
	}
	return nil
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseUser attempts to parse the User stored in the default path. If there
// is no config file, the empty config is returned.
func ParseUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	var config User
	err = readVersioned(path, &config, InitialUserConfigVersion, SupportedUserConfigVersion)
	if _, ok := err.(errors.FileNotFound); ok {
		return User{Version: SupportedUserConfigVersion}, nil
	} else if err != nil {
		return User{}, errors.WithContext(err, "parse")
	}

	if config.Version == "" {
		config.Version = InitialUserConfigVersion
	}
	if err := config.validate(path); err != nil {
		return User{}, err
	}

	config.PackFolder, err = homedir.Expand(config.PackFolder)
	if err != nil {
		return User{}, errors.WithContext(err, "expand pack folder")
	}

	// Evaluate relative paths relative to the config path.
	if config.PackFolder != "" && !filepath.IsAbs(config.PackFolder) {
		config.PackFolder = filepath.Join(filepath.Dir(path), config.PackFolder)
	}
	return config, nil
}

// WriteUser writes the given user config to disk.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	if err := cfg.validate(path); err != nil {
		return err
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetUserConfigPath returns the path to the user's packsync configuration.
// This path is expanded, so it can be directly passed to file operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
