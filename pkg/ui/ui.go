// Package ui defines how the installer talks to the user, and provides the
// terminal and headless implementations used by the CLI.
package ui

import (
	"context"
	"fmt"
	"sort"
)

//go:generate mockery -name UserInterface

// UserInterface is implemented by the frontends that report install progress
// and ask the user about optional files.
type UserInterface interface {
	// Progress reports a step of the install.
	Progress(Progress)

	// ShowOptions presents every optional group and blocks until the user
	// has decided which ones to install. The returned map is keyed by group
	// name. An error aborts the install.
	ShowOptions(context.Context, []OptionGroup) (map[string]bool, error)

	// Error reports an error that only affected part of the install.
	Error(error)

	// Fatal reports an error that aborted the install.
	Fatal(error)
}

// Progress is a single progress event. Total is zero for steps that aren't
// counted.
type Progress struct {
	Message   string
	Completed int
	Total     int
}

func (p Progress) String() string {
	if p.Total == 0 {
		return p.Message
	}
	return fmt.Sprintf("(%d/%d) %s", p.Completed, p.Total, p.Message)
}

// OptionGroup is an optional component of the pack.
type OptionGroup struct {
	Name        string
	Description string

	// Default is the selection suggested by the pack.
	Default bool

	// Selected is the current selection. It's the remembered selection for
	// groups that were shown before, and Default otherwise.
	Selected bool
}

// SortOptionGroups sorts the groups by name.
func SortOptionGroups(groups []OptionGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})
}
