package pack

import (
	"context"
	"io"
	"path"

	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/hash"
	"github.com/sidkik/packsync/pkg/source"
)

// Entry is an index entry after its location and hash have been resolved.
type Entry struct {
	// ID is the absolute location of the entry, and identifies it across
	// runs.
	ID string

	// Path is the slash separated path of the entry in the index.
	Path string

	// Alias overrides the install destination.
	Alias string

	// Preserve entries are never overwritten once they exist locally.
	Preserve bool

	// Target is either Direct or Indirect.
	Target Target
}

// Target describes what an index entry's hash refers to.
type Target interface {
	isTarget()
}

// Direct entries are installed as-is. Hash is the hash of the file itself.
type Direct struct {
	Hash hash.Hash
}

// Indirect entries are metafiles. PointerHash is the hash of the linked
// descriptor, which has to be resolved to find the artifact.
type Indirect struct {
	PointerHash hash.Hash
}

func (Direct) isTarget()   {}
func (Indirect) isTarget() {}

// EntryError records an index entry that couldn't be interpreted.
type EntryError struct {
	ID   string
	Path string
	Err  error
}

func (err EntryError) Error() string {
	return path.Clean(err.Path) + ": " + err.Err.Error()
}

func (err EntryError) Unwrap() error {
	return err.Err
}

// Entries converts the index into entries. `indexLocation` is the location
// that the index was fetched from, and is used to resolve the entries'
// locations. Entries with invalid hashes are returned separately so that the
// rest of the index can still be installed.
func (idx Index) Entries(src source.Source, indexLocation string) ([]Entry, []EntryError) {
	var entries []Entry
	var invalid []EntryError
	for _, f := range idx.Files {
		id, err := src.Resolve(indexLocation, f.File)
		if err != nil {
			invalid = append(invalid, EntryError{ID: f.File, Path: f.File,
				Err: errors.WithContext(err, "resolve location")})
			continue
		}

		format := f.HashFormat
		if format == "" {
			format = idx.HashFormat
		}

		h, err := hash.Parse(format, f.Hash)
		if err != nil {
			invalid = append(invalid, EntryError{ID: id, Path: f.File,
				Err: errors.WithContext(err, "parse hash")})
			continue
		}

		entry := Entry{
			ID:       id,
			Path:     path.Clean(f.File),
			Alias:    f.Alias,
			Preserve: f.Preserve,
			Target:   Direct{Hash: h},
		}
		if f.Metafile {
			entry.Target = Indirect{PointerHash: h}
		}
		entries = append(entries, entry)
	}
	return entries, invalid
}

// Linked is a resolved linked descriptor.
type Linked struct {
	File LinkedFile

	// DescriptorHash is the verified hash of the descriptor itself.
	DescriptorHash hash.Hash

	// ArtifactHash is the expected hash of the downloaded artifact.
	ArtifactHash hash.Hash

	// Location is the absolute location of the artifact.
	Location string
}

// Resolve fetches and verifies the linked descriptor of an Indirect entry.
func (e Entry) Resolve(ctx context.Context, src source.Source) (Linked, error) {
	indirect, ok := e.Target.(Indirect)
	if !ok {
		return Linked{}, errors.Errorf("%s is not a metafile", e.Path)
	}

	var linked LinkedFile
	sum, err := source.FetchVerified(ctx, src, e.ID, indirect.PointerHash.Format,
		func(r io.Reader) (err error) {
			linked, err = DecodeLinkedFile(r)
			return err
		})
	if err != nil {
		return Linked{}, errors.WithContext(err, "fetch linked descriptor")
	}

	if !sum.Equal(indirect.PointerHash) {
		return Linked{}, errors.HashMismatchError{
			File:     e.Path,
			Expected: indirect.PointerHash.Value,
			Actual:   sum.Value,
		}
	}

	artifactHash, err := linked.Hash()
	if err != nil {
		return Linked{}, errors.WithContext(err, "parse download hash")
	}

	location, err := src.Resolve(e.ID, linked.Download.URL)
	if err != nil {
		return Linked{}, errors.WithContext(err, "resolve download location")
	}

	return Linked{
		File:           linked,
		DescriptorHash: sum,
		ArtifactHash:   artifactHash,
		Location:       location,
	}, nil
}

// Destination returns the install path of the entry, relative to the pack
// folder. `linked` must be the resolved descriptor for Indirect entries, and
// is ignored otherwise.
func (e Entry) Destination(linked *Linked) string {
	if e.Alias != "" {
		return path.Clean(e.Alias)
	}
	if _, ok := e.Target.(Indirect); ok && linked != nil {
		return linked.File.Destination(e.Path)
	}
	return e.Path
}

// ExpectedHash returns the hash stored in the index for the entry.
func (e Entry) ExpectedHash() hash.Hash {
	switch t := e.Target.(type) {
	case Direct:
		return t.Hash
	case Indirect:
		return t.PointerHash
	}
	return hash.Hash{}
}
