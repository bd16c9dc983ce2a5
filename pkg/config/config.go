package config

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/packsync/pkg/errors"
)

// parseConfigErrTemplate is shown when a config file isn't valid. The yaml
// library only reports a flat message, so it's passed on as-is.
const parseConfigErrTemplate = "Failed to parse the packsync config at %q.\n" +
	"Check that every field is spelled correctly and has the right type.\n\n" +
	"Parser error:\n" +
	"%s"

// fs is swapped for an in-memory filesystem by the tests.
var fs = afero.NewOsFs()

// versionHeader is read before the rest of a config file, so that a file
// written by another version of packsync is reported as such rather than as
// a field error.
type versionHeader struct {
	Version string `json:"version"`
}

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("%q was written for config version %q, "+
		"but this version of packsync reads %q.\n"+
		"Run `packsync config` to write a new config.", err.path, err.actual, err.exp)
}

// readVersioned decodes the YAML file at `path` into `out`. Files without a
// version are treated as `defaultVersion`. Unknown fields are rejected.
func readVersioned(path string, out interface{}, defaultVersion, expVersion string) error {
	contents, err := afero.ReadFile(fs, path)
	switch {
	case os.IsNotExist(err):
		return errors.FileNotFound{Path: path}
	case err != nil:
		return errors.WithContext(err, "read file")
	}

	var header versionHeader
	if err := yaml.Unmarshal(contents, &header); err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	if header.Version == "" {
		header.Version = defaultVersion
	}
	if header.Version != expVersion {
		return incompatibleVersionError{path, expVersion, header.Version}
	}

	if err := yaml.UnmarshalStrict(contents, out, yaml.DisallowUnknownFields); err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	return nil
}
