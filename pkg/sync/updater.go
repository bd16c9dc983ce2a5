package sync

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/sidkik/packsync/pkg/cache"
	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/hash"
	"github.com/sidkik/packsync/pkg/metrics"
	"github.com/sidkik/packsync/pkg/pack"
	"github.com/sidkik/packsync/pkg/source"
	"github.com/sidkik/packsync/pkg/ui"
)

// Options configures an install.
type Options struct {
	// DownloadURL is the location of the pack descriptor.
	DownloadURL string

	// PackFolder is the directory that the pack is installed into.
	PackFolder string

	// ManifestFile is the path to the manifest. Relative paths are relative
	// to the PackFolder.
	ManifestFile string

	// Side is the side that's being installed. Files meant for the other
	// side are left out.
	Side pack.Side

	// Parallelism is the number of concurrent downloads.
	Parallelism int

	// ForceOptions asks the user about optional files even if none were
	// added since the last run.
	ForceOptions bool

	// Selections are optional group selections that are applied without
	// asking, whether or not the pack changed.
	Selections map[string]bool
}

// Updater installs a pack.
type Updater struct {
	Options
	UI     ui.UserInterface
	Source source.Source
	Log    logrus.FieldLogger
	Clock  clockwork.Clock
}

// Report summarizes an install.
type Report struct {
	// UpToDate is set if nothing changed since the last run.
	UpToDate bool

	Fetched int
	Skipped int
	Deleted int

	// Failures are the files that couldn't be installed. They're retried by
	// the next run.
	Failures []FileFailure
}

// Run installs the pack. An error is only returned if the install was
// aborted, in which case the manifest isn't modified. Failures that only
// affect individual files are reported through the UI and in the Report.
func (u Updater) Run(ctx context.Context) (Report, error) {
	if u.Log == nil {
		u.Log = logrus.StandardLogger()
	}
	if u.Clock == nil {
		u.Clock = clockwork.NewRealClock()
	}

	store := cache.NewStore(fs, u.manifestPath())
	m, err := store.Load()
	if err != nil {
		return Report{}, errors.WithContext(err, "load manifest")
	}

	invalidated := Invalidated(m, u.PackFolder)
	for _, id := range invalidated {
		u.Log.WithField("file", id).Info("File is missing locally, marked for redownloading")
	}

	u.progress("Loading pack file...")
	p, packHash, err := u.fetchPack(ctx)
	if err != nil {
		return Report{}, errors.WithContext(err, "fetch pack")
	}

	// Option changes have to get as far as the option pass, even if nothing
	// changed remotely.
	revisitOptions := u.ForceOptions || len(u.Selections) != 0
	if UpToDate(m.PackFileHash, packHash, invalidated) && !revisitOptions {
		u.progress("Modpack is already up to date!")
		metrics.RecordRun(u.Clock.Now())
		return Report{UpToDate: true}, nil
	}

	if err := p.CheckFormat(); err != nil {
		return Report{}, err
	}
	u.Log.WithFields(logrus.Fields{
		"name":    p.Name,
		"version": p.Version,
	}).Info("Installing pack")

	indexHash, err := p.IndexHash()
	if err != nil {
		return Report{}, errors.WithContext(err, "parse index hash")
	}

	indexLocation, err := u.Source.Resolve(u.DownloadURL, p.Index.File)
	if err != nil {
		return Report{}, errors.WithContext(err, "resolve index location")
	}

	if UpToDate(m.IndexFileHash, indexHash, invalidated) && !revisitOptions {
		u.progress("Modpack files are already up to date!")
		m.PackFileHash = &packHash
		if err := store.Save(m); err != nil {
			return Report{}, errors.WithContext(err, "save manifest")
		}
		metrics.RecordRun(u.Clock.Now())
		return Report{UpToDate: true}, nil
	}

	u.progress("Loading index file...")
	idx, err := u.fetchIndex(ctx, indexLocation, indexHash)
	if err != nil {
		return Report{}, errors.WithContext(err, "fetch index")
	}

	u.progress("Comparing new files...")
	entries, broken := idx.Entries(u.Source, indexLocation)
	plan := Diff(m, entries, invalidated, u.PackFolder)
	plan.AddBroken(broken)
	plan.ResolveLinked(ctx, u.Source, u.parallelism())
	plan.FilterSide(u.Side)

	u.progress("Checking local files...")
	CleanStale(u.Log, m, plan.ToDelete, u.PackFolder)

	if plan.OptionalSetChanged || revisitOptions {
		plan.resolveSkippedOptions(ctx, u.Log, u.Source, u.parallelism())
	}
	if err := CoordinateOptions(ctx, u.UI, &plan, u.ForceOptions, u.Selections); err != nil {
		return Report{}, errors.WithContext(err, "select optional files")
	}

	for _, task := range plan.Deselected {
		u.deselect(m, task)
	}

	report := Report{
		Skipped:  len(plan.ToSkip),
		Deleted:  len(plan.ToDelete),
		Failures: plan.Failed,
	}
	for _, failure := range plan.Failed {
		u.UI.Error(failure)
	}
	metrics.RecordFailed(len(plan.Failed))

	downloader := Downloader{
		Source:      u.Source,
		PackFolder:  u.PackFolder,
		Parallelism: u.parallelism(),
		Log:         u.Log,
		Clock:       u.Clock,
	}

	var completed int
	total := len(plan.ToFetch)
	downloader.Run(ctx, plan.ToFetch, func(out Outcome) {
		completed++
		msg := u.fold(m, out, &report)
		u.UI.Progress(ui.Progress{Message: msg, Completed: completed, Total: total})
	})
	metrics.RecordSkipped(report.Skipped)

	// Only remember the descriptors once every file was installed, so that
	// the next run doesn't exit early and retries the failures.
	if len(report.Failures) == 0 && ctx.Err() == nil {
		m.PackFileHash = &packHash
		m.IndexFileHash = &indexHash
	} else {
		m.PackFileHash = nil
		m.IndexFileHash = nil
	}

	if err := store.Save(m); err != nil {
		return report, errors.WithContext(err, "save manifest")
	}

	if err := ctx.Err(); err != nil {
		return report, errors.WithContext(err, "download")
	}
	metrics.RecordRun(u.Clock.Now())
	return report, nil
}

// fold applies the outcome of a download to the manifest, and returns the
// progress message for it. Failed downloads leave the manifest untouched.
func (u Updater) fold(m *cache.Manifest, out Outcome, report *Report) string {
	name := out.Task.Name()
	if out.Err != nil {
		failure := FileFailure{ID: out.Task.ID(), Name: name, Err: out.Err}
		report.Failures = append(report.Failures, failure)
		u.Log.WithError(out.Err).WithField("file", name).Error("Failed to download file")
		u.UI.Error(failure)
		metrics.RecordDownload(out.Bytes, out.Duration, false)
		return fmt.Sprintf("Failed to download %s: %s", name, out.Err)
	}

	switch out.Action {
	case Preserved:
		report.Skipped++
		return fmt.Sprintf("Kept existing %s", name)
	case Unchanged:
		report.Skipped++
		m.CachedFiles[out.Task.ID()] = newCachedFile(out)
		return fmt.Sprintf("%s is already up to date", name)
	default:
		report.Fetched++
		m.CachedFiles[out.Task.ID()] = newCachedFile(out)
		metrics.RecordDownload(out.Bytes, out.Duration, true)
		return fmt.Sprintf("Downloaded %s", name)
	}
}

func newCachedFile(out Outcome) *cache.CachedFile {
	fileHash := out.Hash
	f := &cache.CachedFile{
		Hash:           &fileHash,
		CachedLocation: out.Location,
	}

	if linked := out.Task.Linked; linked != nil {
		descriptorHash := linked.DescriptorHash
		f.LinkedFileHash = &descriptorHash
		if linked.File.Option.Optional {
			f.IsOptional = true
			f.OptionValue = out.Task.OptionValue
		}
	}
	return f
}

// deselect deletes the installed copy of an optional file that the user no
// longer wants, and remembers the selection.
func (u Updater) deselect(m *cache.Manifest, task Task) {
	f := &cache.CachedFile{IsOptional: true}
	if cached := task.Cached; cached != nil {
		if cached.CachedLocation != "" {
			removeFile(u.Log, u.PackFolder, cached.CachedLocation)
		}
		f.Hash = cached.Hash
		f.LinkedFileHash = cached.LinkedFileHash
	}

	if linked := task.Linked; linked != nil {
		artifactHash := linked.ArtifactHash
		descriptorHash := linked.DescriptorHash
		f.Hash = &artifactHash
		f.LinkedFileHash = &descriptorHash
	}
	m.CachedFiles[task.ID()] = f
}

func (u Updater) fetchPack(ctx context.Context) (pack.Pack, hash.Hash, error) {
	var p pack.Pack
	packHash, err := source.FetchVerified(ctx, u.Source, u.DownloadURL, pack.PackHashFormat,
		func(r io.Reader) (err error) {
			p, err = pack.DecodePack(r)
			return err
		})
	return p, packHash, err
}

func (u Updater) fetchIndex(ctx context.Context, location string, expected hash.Hash) (pack.Index, error) {
	var idx pack.Index
	indexHash, err := source.FetchVerified(ctx, u.Source, location, expected.Format,
		func(r io.Reader) (err error) {
			idx, err = pack.DecodeIndex(r)
			return err
		})
	if err != nil {
		return pack.Index{}, err
	}

	if !indexHash.Equal(expected) {
		return pack.Index{}, errors.HashMismatchError{
			File:     location,
			Expected: expected.Value,
			Actual:   indexHash.Value,
		}
	}
	return idx, nil
}

func (u Updater) manifestPath() string {
	manifestFile := u.ManifestFile
	if manifestFile == "" {
		manifestFile = cache.DefaultFile
	}
	if filepath.IsAbs(manifestFile) {
		return manifestFile
	}
	return filepath.Join(u.PackFolder, manifestFile)
}

func (u Updater) parallelism() int {
	if u.Parallelism <= 0 {
		return DefaultParallelism
	}
	return u.Parallelism
}

func (u Updater) progress(msg string) {
	u.UI.Progress(ui.Progress{Message: msg})
}
