package ui

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Headless is a UserInterface for unattended installs. Progress is logged,
// and optional groups are decided by a fixed set of selections rather than
// by asking.
type Headless struct {
	Log logrus.FieldLogger

	// Selections overrides the selection of optional groups by name. Groups
	// that aren't listed keep their current selection.
	Selections map[string]bool
}

// NewHeadless returns a Headless UI that logs to the standard logger.
func NewHeadless(selections map[string]bool) *Headless {
	return &Headless{Log: logrus.StandardLogger(), Selections: selections}
}

// Progress implements UserInterface.
func (h *Headless) Progress(p Progress) {
	if p.Total == 0 {
		h.Log.Info(p.Message)
		return
	}
	h.Log.WithFields(logrus.Fields{
		"completed": p.Completed,
		"total":     p.Total,
	}).Info(p.Message)
}

// Error implements UserInterface.
func (h *Headless) Error(err error) {
	h.Log.WithError(err).Error("Install step failed")
}

// Fatal implements UserInterface.
func (h *Headless) Fatal(err error) {
	h.Log.WithError(err).Error("Install failed")
}

// ShowOptions implements UserInterface.
func (h *Headless) ShowOptions(ctx context.Context, groups []OptionGroup) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	selections := map[string]bool{}
	for _, group := range groups {
		selected := group.Selected
		if override, ok := h.Selections[group.Name]; ok {
			selected = override
		}
		selections[group.Name] = selected

		h.Log.WithFields(logrus.Fields{
			"option":   group.Name,
			"selected": selected,
		}).Info("Selected optional component")
	}
	return selections, nil
}
