package sync

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/pack"
	"github.com/sidkik/packsync/pkg/source"
)

type resolveResult struct {
	index  int
	linked pack.Linked
	err    error
}

// resolveTasks fetches the linked descriptors of the metafile tasks that
// `shouldResolve` selects, and sets them on the tasks in place. The failures
// are keyed by the index of the task that failed.
func resolveTasks(ctx context.Context, src source.Source, numWorkers int, tasks []Task,
	shouldResolve func(Task) bool) map[int]FileFailure {

	var toResolve []int
	for i, task := range tasks {
		if task.isMetafile() && task.Linked == nil && shouldResolve(task) {
			toResolve = append(toResolve, i)
		}
	}

	failures := map[int]FileFailure{}
	runPool(numWorkers, toResolve,
		func(i int) resolveResult {
			if err := ctx.Err(); err != nil {
				return resolveResult{index: i, err: err}
			}
			linked, err := tasks[i].Entry.Resolve(ctx, src)
			return resolveResult{index: i, linked: linked, err: err}
		},
		func(res resolveResult) {
			if res.err != nil {
				failures[res.index] = FileFailure{
					ID:   tasks[res.index].ID(),
					Name: tasks[res.index].Entry.Path,
					Err:  errors.WithContext(res.err, "resolve metafile"),
				}
				return
			}
			linked := res.linked
			tasks[res.index].Linked = &linked
		})
	return failures
}

// ResolveLinked fetches the linked descriptors of the metafiles that need
// to be downloaded. A descriptor that can't be fetched or doesn't match the
// index only fails its own file.
func (p *Plan) ResolveLinked(ctx context.Context, src source.Source, numWorkers int) {
	failures := resolveTasks(ctx, src, numWorkers, p.ToFetch,
		func(Task) bool { return true })

	var resolved []Task
	for i, task := range p.ToFetch {
		if failure, ok := failures[i]; ok {
			p.Failed = append(p.Failed, failure)
			continue
		}
		resolved = append(resolved, task)
	}
	p.ToFetch = resolved
	p.detectNewOptions()
}

// resolveSkippedOptions fetches the descriptors of skipped optional files,
// which are needed to show them to the user. Since the files themselves are
// already installed, failures are only logged, and the tasks stay skipped.
func (p *Plan) resolveSkippedOptions(ctx context.Context, log logrus.FieldLogger,
	src source.Source, numWorkers int) {

	failures := resolveTasks(ctx, src, numWorkers, p.ToSkip, Task.Optional)
	for _, failure := range failures {
		log.WithError(failure.Err).WithField("file", failure.Name).Warn(
			"Failed to fetch details of optional file. " +
				"Its selection can't be changed until the next run.")
	}
}
