package sync

import (
	"context"

	"github.com/sidkik/packsync/pkg/ui"
)

// CollectOptionGroups returns the optional groups declared by `tasks`. Files
// that share a name are presented as a single group. Tasks whose descriptor
// hasn't been resolved are left out since there's nothing to show for them.
func CollectOptionGroups(tasks []Task) []ui.OptionGroup {
	var groups []ui.OptionGroup
	seen := map[string]struct{}{}
	for _, task := range tasks {
		if !task.Optional() || task.Linked == nil {
			continue
		}

		name := task.Name()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		groups = append(groups, ui.OptionGroup{
			Name:        name,
			Description: task.Linked.File.Option.Description,
			Default:     task.Linked.File.Option.Default,
			Selected:    rememberedSelection(task),
		})
	}
	ui.SortOptionGroups(groups)
	return groups
}

// rememberedSelection returns the selection the user made for the task in a
// previous run, or the pack's default if they were never asked.
func rememberedSelection(task Task) bool {
	if task.Cached != nil && task.Cached.IsOptional {
		return task.Cached.OptionValue
	}
	return task.Linked != nil && task.Linked.File.Option.Default
}

// CoordinateOptions decides which optional files to install. If the pack
// gained optional groups, or `force` is set, the user is asked about every
// group before anything is downloaded. Otherwise the remembered selections
// are used. `requested` selections override both.
// Tasks that end up deselected are moved to plan.Deselected, and skipped
// tasks that were reselected are moved to plan.ToFetch. If the user cancels,
// the error is returned and the plan should be discarded.
func CoordinateOptions(ctx context.Context, userInterface ui.UserInterface, plan *Plan,
	force bool, requested map[string]bool) error {

	for _, tasks := range [][]Task{plan.ToFetch, plan.ToSkip} {
		for i := range tasks {
			if tasks[i].Optional() {
				tasks[i].OptionValue = rememberedSelection(tasks[i])
			}
		}
	}

	if plan.OptionalSetChanged || force {
		all := append(append([]Task{}, plan.ToFetch...), plan.ToSkip...)
		groups := CollectOptionGroups(all)
		if len(groups) != 0 {
			selections, err := userInterface.ShowOptions(ctx, groups)
			if err != nil {
				return err
			}
			applySelections(plan.ToFetch, selections)
			applySelections(plan.ToSkip, selections)
		}
	}
	applySelections(plan.ToFetch, requested)
	applySelections(plan.ToSkip, requested)

	var toFetch, toSkip []Task
	for _, task := range plan.ToFetch {
		if task.Optional() && !task.OptionValue {
			plan.Deselected = append(plan.Deselected, task)
			continue
		}
		toFetch = append(toFetch, task)
	}

	for _, task := range plan.ToSkip {
		if !task.Optional() {
			toSkip = append(toSkip, task)
			continue
		}

		wasDeselected := task.Cached != nil && task.Cached.Deselected()
		switch {
		case task.OptionValue && wasDeselected && task.Linked != nil:
			toFetch = append(toFetch, task)
		case !task.OptionValue && !wasDeselected:
			plan.Deselected = append(plan.Deselected, task)
		default:
			toSkip = append(toSkip, task)
		}
	}

	plan.ToFetch = toFetch
	plan.ToSkip = toSkip
	return nil
}

func applySelections(tasks []Task, selections map[string]bool) {
	for i := range tasks {
		if !tasks[i].Optional() || tasks[i].Linked == nil {
			continue
		}
		if selected, ok := selections[tasks[i].Name()]; ok {
			tasks[i].OptionValue = selected
		}
	}
}
