// Package cache persists what packsync knows about the files it has
// installed. The manifest is loaded once at the start of a run, mutated in
// memory, and written back once at the end. Saving goes through a temporary
// file that's renamed into place, so a crash mid-run leaves the previous
// manifest intact.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/hash"
)

// DefaultFile is the name of the manifest within the pack folder.
const DefaultFile = "packwiz.json"

// Manifest is the persisted state of a pack installation.
type Manifest struct {
	// PackFileHash and IndexFileHash are the hashes of the descriptors that
	// produced the cached files. They're unset until a run completes.
	PackFileHash  *hash.Hash `json:"packFileHash,omitempty"`
	IndexFileHash *hash.Hash `json:"indexFileHash,omitempty"`

	// CachedFiles is keyed by the absolute location of the index entry.
	CachedFiles map[string]*CachedFile `json:"cachedFiles"`
}

// CachedFile is the last verified state of a single index entry.
type CachedFile struct {
	// Hash is the hash of the installed file.
	Hash *hash.Hash `json:"hash,omitempty"`

	// LinkedFileHash is the hash of the linked descriptor for metafile
	// entries.
	LinkedFileHash *hash.Hash `json:"linkedFileHash,omitempty"`

	// CachedLocation is the slash separated path of the file relative to the
	// pack folder. It's empty if the file isn't installed.
	CachedLocation string `json:"cachedLocation,omitempty"`

	IsOptional  bool `json:"isOptional"`
	OptionValue bool `json:"optionValue"`
}

// Deselected returns whether the file belongs to an optional group that the
// user chose not to install.
func (f CachedFile) Deselected() bool {
	return f.IsOptional && !f.OptionValue
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{CachedFiles: map[string]*CachedFile{}}
}

// Store reads and writes the manifest at a fixed path.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a Store for the manifest at `path` on `fs`.
func NewStore(fs afero.Fs, path string) Store {
	return Store{fs: fs, path: path}
}

// Path returns the path of the manifest.
func (s Store) Path() string {
	return s.path
}

// Load reads the manifest. A missing manifest is a cold start and results in
// an empty manifest. A manifest that exists but can't be decoded is an
// error, since silently dropping it would reinstall everything.
func (s Store) Load() (*Manifest, error) {
	manifestBytes, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.WithContext(err, "read")
	}

	m := New()
	if err := json.Unmarshal(manifestBytes, m); err != nil {
		return nil, errors.NewFriendlyError("The manifest at %q is corrupt "+
			"and couldn't be parsed: %s.\n\n"+
			"Delete it to force a full reinstall of the pack.", s.path, err)
	}

	if m.CachedFiles == nil {
		m.CachedFiles = map[string]*CachedFile{}
	}
	for id, f := range m.CachedFiles {
		if f == nil {
			delete(m.CachedFiles, id)
		}
	}
	return m, nil
}

// Save writes the manifest. The new manifest is written to a temporary file
// in the same directory and renamed over the old one.
func (s Store) Save(m *Manifest) error {
	manifestBytes, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return errors.WithContext(err, "create directory")
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".tmp")
	if err != nil {
		return errors.WithContext(err, "create temp file")
	}

	if _, err := tmp.Write(manifestBytes); err != nil {
		tmp.Close()
		s.fs.Remove(tmp.Name())
		return errors.WithContext(err, "write")
	}

	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmp.Name())
		return errors.WithContext(err, "close")
	}

	if err := s.fs.Rename(tmp.Name(), s.path); err != nil {
		s.fs.Remove(tmp.Name())
		return errors.WithContext(err, "rename")
	}
	return nil
}

// Clone returns a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	clone := &Manifest{
		PackFileHash:  copyHash(m.PackFileHash),
		IndexFileHash: copyHash(m.IndexFileHash),
		CachedFiles:   make(map[string]*CachedFile, len(m.CachedFiles)),
	}
	for id, f := range m.CachedFiles {
		fCopy := *f
		fCopy.Hash = copyHash(f.Hash)
		fCopy.LinkedFileHash = copyHash(f.LinkedFileHash)
		clone.CachedFiles[id] = &fCopy
	}
	return clone
}

func copyHash(h *hash.Hash) *hash.Hash {
	if h == nil {
		return nil
	}
	hCopy := *h
	return &hCopy
}
