package sync

import (
	"fmt"
	"path"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sidkik/packsync/pkg/cache"
	"github.com/sidkik/packsync/pkg/hash"
	"github.com/sidkik/packsync/pkg/pack"
)

// A Task is an index entry paired with what's known about it locally.
type Task struct {
	Entry pack.Entry

	// Cached is the manifest record from the previous run, or nil if the
	// entry has never been installed. It's read-only.
	Cached *cache.CachedFile

	// Linked is the resolved descriptor for metafile entries. It's only set
	// once the descriptor has been fetched.
	Linked *pack.Linked

	// Invalidated is set if the cached copy of the file went missing.
	Invalidated bool

	// OptionValue is whether an optional file should be installed.
	OptionValue bool
}

// ID returns the identifier that the task is cached under.
func (t Task) ID() string {
	return t.Entry.ID
}

// Destination returns the install path relative to the pack folder.
func (t Task) Destination() string {
	return t.Entry.Destination(t.Linked)
}

// Name returns a human readable name for the task.
func (t Task) Name() string {
	if t.Linked != nil && t.Linked.File.Name != "" {
		return t.Linked.File.Name
	}
	return path.Base(t.Destination())
}

// Optional returns whether the task belongs to an optional group. Tasks
// whose descriptor hasn't been resolved fall back to the cached state.
func (t Task) Optional() bool {
	if t.Linked != nil {
		return t.Linked.File.Option.Optional
	}
	return t.Cached != nil && t.Cached.IsOptional
}

// ExpectedHash returns the hash that the installed file must have.
func (t Task) ExpectedHash() hash.Hash {
	if t.Linked != nil {
		return t.Linked.ArtifactHash
	}
	return t.Entry.ExpectedHash()
}

// Location returns where the file is downloaded from.
func (t Task) Location() string {
	if t.Linked != nil {
		return t.Linked.Location
	}
	return t.Entry.ID
}

func (t Task) isMetafile() bool {
	_, ok := t.Entry.Target.(pack.Indirect)
	return ok
}

// FileFailure is an error that only affected a single file.
type FileFailure struct {
	ID   string
	Name string
	Err  error
}

func (f FileFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Name, f.Err)
}

func (f FileFailure) Unwrap() error {
	return f.Err
}

// Plan is the result of diffing the index against the manifest.
type Plan struct {
	ToFetch []Task
	ToSkip  []Task

	// ToDelete lists the IDs of cached files that are no longer part of the
	// pack.
	ToDelete []string

	// Deselected holds optional tasks that the user chose not to install.
	Deselected []Task

	// Failed holds entries that couldn't be prepared for download.
	Failed []FileFailure

	// OptionalSetChanged is set if the pack contains optional groups that
	// the user hasn't made a selection for yet.
	OptionalSetChanged bool
}

// Invalidated returns the IDs of cached files that have to be downloaded
// again because their local copy is missing. Files that were deselected are
// expected to be missing.
func Invalidated(m *cache.Manifest, packFolder string) []string {
	var ids []string
	for id, f := range m.CachedFiles {
		if f.Deselected() {
			continue
		}

		if f.CachedLocation == "" {
			ids = append(ids, id)
			continue
		}

		path, err := localPath(packFolder, f.CachedLocation)
		if err != nil || !exists(path) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// UpToDate returns whether a descriptor is unchanged since the last run, and
// so whatever it describes can be skipped.
func UpToDate(stored *hash.Hash, current hash.Hash, invalidated []string) bool {
	return stored != nil && stored.Equal(current) && len(invalidated) == 0
}

// Diff classifies each index entry as needing a download or not, and finds
// the cached files that are no longer in the index.
// Only hashes are compared. The contents of files on disk are trusted to
// match the manifest unless the file is missing entirely.
func Diff(m *cache.Manifest, entries []pack.Entry, invalidated []string, packFolder string) Plan {
	isInvalidated := map[string]struct{}{}
	for _, id := range invalidated {
		isInvalidated[id] = struct{}{}
	}

	var plan Plan
	inIndex := map[string]struct{}{}
	for _, entry := range entries {
		inIndex[entry.ID] = struct{}{}

		task := Task{Entry: entry, Cached: m.CachedFiles[entry.ID]}
		_, task.Invalidated = isInvalidated[entry.ID]

		fetch := task.Invalidated || !cacheMatches(task)
		if fetch && entry.Preserve && !task.isMetafile() {
			// Existing files are never clobbered. Preserved metafiles are
			// checked once their destination is known.
			if path, err := localPath(packFolder, task.Destination()); err == nil && exists(path) {
				fetch = false
			}
		}

		if fetch {
			plan.ToFetch = append(plan.ToFetch, task)
		} else {
			plan.ToSkip = append(plan.ToSkip, task)
		}
	}

	for id := range m.CachedFiles {
		if _, ok := inIndex[id]; !ok {
			plan.ToDelete = append(plan.ToDelete, id)
		}
	}
	sort.Strings(plan.ToDelete)
	return plan
}

// cacheMatches returns whether the cached record is for the same version of
// the entry.
func cacheMatches(task Task) bool {
	cached := task.Cached
	if cached == nil {
		return false
	}

	if indirect, ok := task.Entry.Target.(pack.Indirect); ok {
		if cached.LinkedFileHash == nil || !cached.LinkedFileHash.Equal(indirect.PointerHash) {
			return false
		}
		// The alias lives in the index rather than the descriptor, so it
		// can change without the descriptor changing.
		return task.Entry.Alias == "" || cached.Deselected() ||
			cached.CachedLocation == task.Entry.Destination(nil)
	}

	return cached.Hash != nil && cached.Hash.Equal(task.Entry.ExpectedHash()) &&
		cached.CachedLocation == task.Destination()
}

// FilterSide drops metafiles meant for the other side. They're treated as
// if they weren't in the index, so previously installed copies are deleted,
// and their optional groups don't count as new.
func (p *Plan) FilterSide(side pack.Side) {
	var kept []Task
	for _, task := range p.ToFetch {
		if task.Linked != nil && !task.Linked.File.Side.Has(side) {
			if task.Cached != nil {
				p.ToDelete = append(p.ToDelete, task.ID())
			}
			continue
		}
		kept = append(kept, task)
	}
	p.ToFetch = kept
	sort.Strings(p.ToDelete)
	p.detectNewOptions()
}

// AddBroken records index entries that couldn't be interpreted as failures.
// The entries are still part of the index, so their cached files are kept.
func (p *Plan) AddBroken(broken []pack.EntryError) {
	isBroken := map[string]struct{}{}
	for _, err := range broken {
		isBroken[err.ID] = struct{}{}
		p.Failed = append(p.Failed, FileFailure{
			ID:   err.ID,
			Name: err.Path,
			Err:  err.Err,
		})
	}

	var toDelete []string
	for _, id := range p.ToDelete {
		if _, ok := isBroken[id]; !ok {
			toDelete = append(toDelete, id)
		}
	}
	p.ToDelete = toDelete
}

// detectNewOptions sets OptionalSetChanged if any task is optional but
// wasn't optional the last time it was installed.
func (p *Plan) detectNewOptions() {
	p.OptionalSetChanged = false
	for _, tasks := range [][]Task{p.ToFetch, p.ToSkip} {
		for _, task := range tasks {
			if task.Optional() && (task.Cached == nil || !task.Cached.IsOptional) {
				p.OptionalSetChanged = true
				return
			}
		}
	}
}

// CleanStale deletes the files of cached records in `toDelete`, and drops
// the records. Files that were deselected are also deleted, but their
// records are kept so that the selection is remembered. A file is deleted
// at most once, even if it's both stale and deselected.
func CleanStale(log logrus.FieldLogger, m *cache.Manifest, toDelete []string, packFolder string) {
	isStale := map[string]struct{}{}
	for _, id := range toDelete {
		isStale[id] = struct{}{}
	}

	for id, f := range m.CachedFiles {
		_, stale := isStale[id]
		if f.CachedLocation != "" && (stale || f.Deselected()) {
			log.WithField("path", f.CachedLocation).Debug("Deleting file")
			removeFile(log, packFolder, f.CachedLocation)
		}

		if stale {
			delete(m.CachedFiles, id)
		} else if f.Deselected() {
			f.CachedLocation = ""
		}
	}
}
