package sync

import (
	"bytes"
	"path"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/jonboulle/clockwork"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/packsync/pkg/hash"
	"github.com/sidkik/packsync/pkg/pack"
	"github.com/sidkik/packsync/pkg/source"
	"github.com/sidkik/packsync/pkg/ui"
)

const (
	remoteFolder = "/remote"
	packFolder   = "/pack"
)

func sha256Of(contents string) hash.Hash {
	hasher, err := hash.Get("sha256")
	if err != nil {
		panic(err)
	}
	return hasher.Sum([]byte(contents))
}

// remotePack builds a pack on an in-memory filesystem that's served through
// a FileSource.
type remotePack struct {
	t     *testing.T
	fs    afero.Fs
	files []pack.IndexFile
}

func newRemotePack(t *testing.T) *remotePack {
	return &remotePack{t: t, fs: afero.NewMemMapFs()}
}

func (r *remotePack) source() source.Source {
	return &source.FileSource{Fs: r.fs}
}

func (r *remotePack) write(p, contents string) {
	require.NoError(r.t, afero.WriteFile(r.fs, p, []byte(contents), 0644))
}

func (r *remotePack) encode(v interface{}) string {
	var buf bytes.Buffer
	require.NoError(r.t, toml.NewEncoder(&buf).Encode(v))
	return buf.String()
}

func (r *remotePack) setEntry(f pack.IndexFile) {
	for i, existing := range r.files {
		if existing.File == f.File {
			r.files[i] = f
			return
		}
	}
	r.files = append(r.files, f)
}

// addFile adds a file that's installed as-is.
func (r *remotePack) addFile(p, contents string) {
	r.write(path.Join(remoteFolder, p), contents)
	r.setEntry(pack.IndexFile{File: p, Hash: sha256Of(contents).Value})
}

// addMetafile adds a metafile at `p` whose artifact has `contents`.
func (r *remotePack) addMetafile(p string, linked pack.LinkedFile, contents string) {
	artifactPath := path.Join("/artifacts", linked.Filename)
	r.write(artifactPath, contents)

	linked.Download = pack.Download{
		URL:        artifactPath,
		HashFormat: "sha256",
		Hash:       sha256Of(contents).Value,
	}
	descriptor := r.encode(linked)
	r.write(path.Join(remoteFolder, p), descriptor)
	r.setEntry(pack.IndexFile{File: p, Hash: sha256Of(descriptor).Value, Metafile: true})
}

func (r *remotePack) remove(p string) {
	var files []pack.IndexFile
	for _, f := range r.files {
		if f.File != p {
			files = append(files, f)
		}
	}
	r.files = files
}

// publish writes the index and pack descriptor.
func (r *remotePack) publish() {
	index := r.encode(pack.Index{HashFormat: "sha256", Files: r.files})
	r.write(path.Join(remoteFolder, "index.toml"), index)
	r.write(path.Join(remoteFolder, "pack.toml"), r.encode(pack.Pack{
		Name:       "Test Pack",
		Version:    "1.0.0",
		PackFormat: "packwiz:1.1.0",
		Index: pack.IndexRef{
			File:       "index.toml",
			HashFormat: "sha256",
			Hash:       sha256Of(index).Value,
		},
	}))
}

func (r *remotePack) id(p string) string {
	return path.Join(remoteFolder, p)
}

func (r *remotePack) updater(userInterface ui.UserInterface) Updater {
	log, _ := logrusTest.NewNullLogger()
	return Updater{
		Options: Options{
			DownloadURL: path.Join(remoteFolder, "pack.toml"),
			PackFolder:  packFolder,
			Side:        pack.Client,
			Parallelism: 2,
		},
		UI:     userInterface,
		Source: r.source(),
		Log:    log,
		Clock:  clockwork.NewFakeClock(),
	}
}

func headless(selections map[string]bool) *ui.Headless {
	log, _ := logrusTest.NewNullLogger()
	return &ui.Headless{Log: log, Selections: selections}
}

func readLocal(t *testing.T, p string) string {
	contents, err := afero.ReadFile(fs, path.Join(packFolder, p))
	require.NoError(t, err)
	return string(contents)
}

func writeLocal(t *testing.T, p, contents string) {
	require.NoError(t, afero.WriteFile(fs, path.Join(packFolder, p), []byte(contents), 0644))
}

func localExists(p string) bool {
	return exists(path.Join(packFolder, p))
}
