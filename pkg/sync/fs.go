package sync

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/packsync/pkg/errors"
)

// fs is used for mock tests. It will be overridden by afero.NewMemMapFs()
// in the tests.
var fs = afero.NewOsFs()

// localPath converts a slash separated path relative to the pack folder into
// a filesystem path. Paths that would escape the pack folder are rejected.
func localPath(packFolder, rel string) (string, error) {
	path := filepath.Join(packFolder, filepath.FromSlash(rel))
	relToFolder, err := filepath.Rel(packFolder, path)
	if err != nil || relToFolder == ".." ||
		strings.HasPrefix(relToFolder, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("%q is outside of the pack folder", rel)
	}
	return path, nil
}

func exists(path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// removeFile deletes a file in the pack folder. Failures are logged rather
// than returned since a leftover file doesn't affect the install.
func removeFile(log logrus.FieldLogger, packFolder, rel string) {
	path, err := localPath(packFolder, rel)
	if err != nil {
		log.WithError(err).WithField("path", rel).Warn("Refusing to delete file")
		return
	}

	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", path).Warn(
			"Failed to delete stale file. It can be removed manually.")
	}
}
