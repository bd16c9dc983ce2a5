package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/buger/goterm"
	"github.com/jonboulle/clockwork"

	"github.com/sidkik/packsync/pkg/errors"
)

// Terminal is an interactive UserInterface. Progress is printed line by line,
// and optional groups are confirmed one at a time.
type Terminal struct {
	out   io.Writer
	in    *bufio.Reader
	clock clockwork.Clock
	start time.Time

	// Progress, Error and ShowOptions may be called from different
	// goroutines, so writes to `out` are serialized.
	lock sync.Mutex
}

// NewTerminal returns a Terminal that writes to `out` and reads answers from
// `in`.
func NewTerminal(out io.Writer, in io.Reader, clock clockwork.Clock) *Terminal {
	return &Terminal{
		out:   out,
		in:    bufio.NewReader(in),
		clock: clock,
		start: clock.Now(),
	}
}

// Progress implements UserInterface.
func (t *Terminal) Progress(p Progress) {
	t.lock.Lock()
	defer t.lock.Unlock()

	elapsed := t.clock.Since(t.start).Truncate(100 * time.Millisecond)
	fmt.Fprintf(t.out, "%s %s\n", goterm.Color(fmt.Sprintf("[%7s]", elapsed), goterm.CYAN), p)
}

// Error implements UserInterface.
func (t *Terminal) Error(err error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	fmt.Fprintln(t.out, goterm.Color("Error: "+err.Error(), goterm.YELLOW))
}

// Fatal implements UserInterface.
func (t *Terminal) Fatal(err error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	msg := err.Error()
	if friendly, ok := errors.GetFriendlyMessage(err); ok {
		msg = friendly
	}
	fmt.Fprintln(t.out, goterm.Color("Install failed: "+msg, goterm.RED))
}

// ShowOptions implements UserInterface. Each group is confirmed with a y/n
// prompt that defaults to the current selection. Entering `q`, or closing
// the input, cancels the install.
// `ctx` is only checked between groups. A prompt that's waiting for input
// doesn't notice the cancellation until a line is entered.
func (t *Terminal) ShowOptions(ctx context.Context, groups []OptionGroup) (map[string]bool, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	fmt.Fprintln(t.out, goterm.Bold("This pack has optional components."))
	fmt.Fprintln(t.out, "Choose which ones to install. Enter `q` to cancel the install.")
	fmt.Fprintln(t.out)

	selections := map[string]bool{}
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		selected, err := t.promptGroup(group)
		if err != nil {
			return nil, err
		}
		selections[group.Name] = selected
	}
	fmt.Fprintln(t.out)
	return selections, nil
}

func (t *Terminal) promptGroup(group OptionGroup) (bool, error) {
	fmt.Fprintln(t.out, goterm.Bold(group.Name))
	if group.Description != "" {
		fmt.Fprintf(t.out, "  %s\n", group.Description)
	}

	choices := "y/N"
	if group.Selected {
		choices = "Y/n"
	}

	for {
		fmt.Fprintf(t.out, "Install %s? [%s/q]: ", group.Name, choices)
		resp, err := t.in.ReadString('\n')
		if err != nil && (err != io.EOF || resp == "") {
			if err == io.EOF {
				return false, errors.ErrOptionsCancelled
			}
			return false, errors.WithContext(err, "read response")
		}

		switch strings.ToLower(strings.TrimSpace(resp)) {
		case "":
			return group.Selected, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "q", "quit":
			return false, errors.ErrOptionsCancelled
		}

		if err == io.EOF {
			return false, errors.ErrOptionsCancelled
		}
		fmt.Fprintln(t.out, "Please answer y or n.")
	}
}
