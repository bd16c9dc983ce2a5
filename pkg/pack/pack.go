// Package pack defines the remote descriptors that make up a pack, and
// decodes them from their TOML wire format.
//
// A pack is described by three kinds of documents:
//  1. The pack descriptor (pack.toml), which names the pack and points at
//     the index. Its hash is the root of trust for a run.
//  2. The index (index.toml), which lists every file in the pack along with
//     its expected hash.
//  3. Linked descriptors (*.pw.toml), which are index entries flagged as
//     metafiles. Rather than being installed themselves, they describe an
//     artifact to download from elsewhere, along with metadata such as which
//     side it's for and whether it's optional.
package pack

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	goversion "github.com/hashicorp/go-version"

	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/hash"
)

// PackHashFormat is the hash format used to fingerprint pack descriptors.
const PackHashFormat = "sha256"

// supportedFormats is the range of pack-format versions this binary can
// install.
var supportedFormats = mustConstraint(">= 1.0.0, < 2.0.0")

// Pack is the root descriptor of a pack.
type Pack struct {
	Name       string   `toml:"name"`
	Author     string   `toml:"author"`
	Version    string   `toml:"version"`
	PackFormat string   `toml:"pack-format"`
	Index      IndexRef `toml:"index"`
}

// IndexRef points at the index of a pack.
type IndexRef struct {
	File       string `toml:"file"`
	HashFormat string `toml:"hash-format"`
	Hash       string `toml:"hash"`
}

// Index lists the files that belong to a pack.
type Index struct {
	// HashFormat is the default hash format for files that don't specify
	// one.
	HashFormat string      `toml:"hash-format"`
	Files      []IndexFile `toml:"files"`
}

// IndexFile is a single entry in the index.
type IndexFile struct {
	File       string `toml:"file"`
	Hash       string `toml:"hash"`
	HashFormat string `toml:"hash-format"`
	Alias      string `toml:"alias"`
	Metafile   bool   `toml:"metafile"`
	Preserve   bool   `toml:"preserve"`
}

// LinkedFile is the descriptor referenced by a metafile index entry.
type LinkedFile struct {
	Name     string   `toml:"name"`
	Filename string   `toml:"filename"`
	Side     Side     `toml:"side"`
	Download Download `toml:"download"`
	Option   Option   `toml:"option"`
}

// Download describes where to get a linked artifact from.
type Download struct {
	URL        string `toml:"url"`
	HashFormat string `toml:"hash-format"`
	Hash       string `toml:"hash"`
}

// Option marks a linked file as optional.
type Option struct {
	Optional    bool   `toml:"optional"`
	Description string `toml:"description"`
	Default     bool   `toml:"default"`
}

// Hash returns the expected hash of the artifact.
func (f LinkedFile) Hash() (hash.Hash, error) {
	if f.Download.HashFormat == "" {
		return hash.Hash{}, errors.MissingFieldError{Field: "download.hash-format"}
	}
	return hash.Parse(f.Download.HashFormat, f.Download.Hash)
}

// DecodePack decodes a pack descriptor and checks that it has the fields
// needed to find the index.
func DecodePack(r io.Reader) (Pack, error) {
	var p Pack
	if _, err := toml.NewDecoder(r).Decode(&p); err != nil {
		return Pack{}, err
	}

	switch {
	case p.Index.File == "":
		return Pack{}, errors.MissingFieldError{Field: "index.file"}
	case p.Index.HashFormat == "":
		return Pack{}, errors.MissingFieldError{Field: "index.hash-format"}
	case p.Index.Hash == "":
		return Pack{}, errors.MissingFieldError{Field: "index.hash"}
	}
	return p, nil
}

// IndexHash returns the expected hash of the index.
func (p Pack) IndexHash() (hash.Hash, error) {
	return hash.Parse(p.Index.HashFormat, p.Index.Hash)
}

// CheckFormat returns an error if the pack was written in a format that this
// version of packsync can't install. Packs that don't declare a format
// predate versioning and are accepted.
func (p Pack) CheckFormat() error {
	if p.PackFormat == "" {
		return nil
	}

	versionStr := strings.TrimPrefix(p.PackFormat, "packwiz:")
	if versionStr == p.PackFormat {
		return errors.NewFriendlyError("The pack %q uses the unrecognized "+
			"format %q.", p.Name, p.PackFormat)
	}

	v, err := goversion.NewVersion(versionStr)
	if err != nil {
		return errors.WithContext(err, "parse pack format")
	}

	if !supportedFormats.Check(v) {
		return errors.NewFriendlyError("The pack %q uses format version %s, "+
			"which isn't supported by this version of packsync (supported: %s).\n"+
			"Please upgrade packsync.", p.Name, v, supportedFormats)
	}
	return nil
}

// SupportedFormats returns the range of pack-format versions that can be
// installed.
func SupportedFormats() string {
	return supportedFormats.String()
}

// DecodeIndex decodes an index.
func DecodeIndex(r io.Reader) (Index, error) {
	var idx Index
	if _, err := toml.NewDecoder(r).Decode(&idx); err != nil {
		return Index{}, err
	}

	for i, f := range idx.Files {
		if f.File == "" {
			return Index{}, errors.WithContext(errors.MissingFieldError{Field: "file"},
				fmt.Sprintf("files[%d]", i))
		}
	}
	return idx, nil
}

// DecodeLinkedFile decodes the descriptor referenced by a metafile.
func DecodeLinkedFile(r io.Reader) (LinkedFile, error) {
	var f LinkedFile
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return LinkedFile{}, err
	}

	switch {
	case f.Download.URL == "":
		return LinkedFile{}, errors.MissingFieldError{Field: "download.url"}
	case f.Filename == "":
		return LinkedFile{}, errors.MissingFieldError{Field: "filename"}
	}
	return f, nil
}

// Destination returns where the linked artifact should be installed, given
// the index path of the metafile that references it. The artifact lives next
// to its metafile.
func (f LinkedFile) Destination(metafilePath string) string {
	return path.Join(path.Dir(metafilePath), f.Filename)
}

func mustConstraint(c string) goversion.Constraints {
	constraints, err := goversion.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraints
}
