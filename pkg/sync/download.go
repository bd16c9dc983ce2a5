package sync

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/hash"
	"github.com/sidkik/packsync/pkg/source"
)

// DefaultParallelism is the number of files downloaded at once.
const DefaultParallelism = 10

// Action is what the downloader did for a task.
type Action int

const (
	// Downloaded means that the file was downloaded and verified.
	Downloaded Action = iota

	// Unchanged means that the metafile changed, but the file it points to
	// was already installed.
	Unchanged

	// Preserved means that the file was left alone because it's marked as
	// preserved and already exists.
	Preserved
)

// Outcome is the result of processing a single task. Outcomes are immutable
// once they're sent by a worker.
type Outcome struct {
	Task   Task
	Action Action

	// Hash is the verified hash of the installed file.
	Hash hash.Hash

	// Location is the install path relative to the pack folder.
	Location string

	Bytes    int64
	Duration time.Duration
	Err      error
}

// Downloader downloads tasks into the pack folder.
type Downloader struct {
	Source      source.Source
	PackFolder  string
	Parallelism int
	Log         logrus.FieldLogger
	Clock       clockwork.Clock
}

// Run downloads `tasks` using a pool of workers that's torn down before Run
// returns. `fold` is called with each outcome, in completion order, from
// the goroutine that called Run. A failing task doesn't affect the others.
// If `ctx` is cancelled, the remaining tasks fail with the context's error.
func (d Downloader) Run(ctx context.Context, tasks []Task, fold func(Outcome)) {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	parallelism := d.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	// Files that are about to be installed shouldn't be deleted when
	// another file moves away from the same path.
	claimed := map[string]struct{}{}
	for _, task := range tasks {
		claimed[task.Destination()] = struct{}{}
	}

	runPool(parallelism, tasks,
		func(task Task) Outcome {
			return d.download(ctx, task, claimed)
		},
		fold)
}

func (d Downloader) download(ctx context.Context, task Task, claimed map[string]struct{}) Outcome {
	start := d.Clock.Now()
	out := Outcome{Task: task, Location: task.Destination()}
	finish := func(err error) Outcome {
		out.Err = err
		out.Duration = d.Clock.Since(start)
		return out
	}

	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	destPath, err := localPath(d.PackFolder, out.Location)
	if err != nil {
		return finish(err)
	}
	expected := task.ExpectedHash()

	// If only the metafile changed, the installed file may already be the
	// one it points to.
	if cached := task.Cached; task.Linked != nil && cached != nil && cached.Hash != nil &&
		cached.Hash.Equal(expected) && cached.CachedLocation == out.Location && exists(destPath) {
		out.Action = Unchanged
		out.Hash = expected
		return finish(nil)
	}

	if task.Entry.Preserve && exists(destPath) {
		out.Action = Preserved
		return finish(nil)
	}

	n, err := d.fetch(ctx, task, expected, destPath)
	if err != nil {
		return finish(err)
	}
	out.Action = Downloaded
	out.Hash = expected
	out.Bytes = n

	if cached := task.Cached; cached != nil && cached.CachedLocation != "" &&
		cached.CachedLocation != out.Location {
		if _, ok := claimed[cached.CachedLocation]; !ok {
			d.Log.WithField("path", cached.CachedLocation).Debug("Removing file from old location")
			removeFile(d.Log, d.PackFolder, cached.CachedLocation)
		}
	}
	return finish(nil)
}

// fetch downloads the task into `destPath`. The contents are hashed as
// they're written to a temporary file, which is only renamed into place if
// the hash matches. The destination is never left partially written.
func (d Downloader) fetch(ctx context.Context, task Task, expected hash.Hash, destPath string) (int64, error) {
	hasher, err := hash.Get(expected.Format)
	if err != nil {
		return 0, err
	}

	stream, err := d.Source.Open(ctx, task.Location())
	if err != nil {
		return 0, errors.WithContext(err, "open")
	}
	defer stream.Close()

	if err := fs.MkdirAll(d.PackFolder, 0755); err != nil {
		return 0, errors.WithContext(err, "create pack folder")
	}

	// The temporary file is staged in the pack folder rather than next to
	// the destination so that nothing is created for files that fail
	// verification.
	tmp, err := afero.TempFile(fs, d.PackFolder, ".packsync-download-")
	if err != nil {
		return 0, errors.WithContext(err, "create temp file")
	}
	tmpPath := tmp.Name()

	reader := hasher.NewReader(stream)
	_, copyErr := io.Copy(tmp, contextReader{ctx, reader})
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		fs.Remove(tmpPath)
		if copyErr != nil {
			return 0, errors.WithContext(copyErr, "download")
		}
		return 0, errors.WithContext(closeErr, "close temp file")
	}

	if !reader.Equal(expected) {
		fs.Remove(tmpPath)
		return 0, errors.HashMismatchError{
			File:     task.Destination(),
			Expected: expected.Value,
			Actual:   reader.Sum().Value,
		}
	}

	if err := fs.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		fs.Remove(tmpPath)
		return 0, errors.WithContext(err, "create parent directory")
	}

	if err := fs.Rename(tmpPath, destPath); err != nil {
		fs.Remove(tmpPath)
		return 0, errors.WithContext(err, "rename")
	}
	return reader.BytesRead(), nil
}

// contextReader stops reading once the context is cancelled, for sources
// whose streams don't watch the context themselves.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
