package source

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidkik/packsync/pkg/errors"
)

// FileSource reads locations from a filesystem. Both plain paths and file://
// URLs are accepted.
type FileSource struct {
	Fs afero.Fs
}

// NewFileSource returns a FileSource backed by the OS filesystem.
func NewFileSource() *FileSource {
	return &FileSource{Fs: afero.NewOsFs()}
}

// Resolve implements Source.
func (s *FileSource) Resolve(base, rel string) (string, error) {
	return Resolve(base, rel)
}

// Open implements Source.
func (s *FileSource) Open(_ context.Context, location string) (io.ReadCloser, error) {
	path := location
	if schemeOf(location) == "file" {
		u, err := url.Parse(location)
		if err != nil {
			return nil, errors.WithContext(err, "parse file url")
		}
		path = filepath.FromSlash(u.Path)
	}

	f, err := s.Fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: path}
		}
		return nil, err
	}
	return f, nil
}
