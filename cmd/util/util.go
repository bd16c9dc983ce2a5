// Package util contains helpers shared by the packsync commands.
package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/packsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// HandleFatalError prints `err` and exits. Friendly errors are printed as
// is, other errors are prefixed so that it's clear that something
// unexpected happened.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")

	if msg, ok := errors.GetFriendlyMessage(err); ok {
		fmt.Fprintln(stderr, msg)
	} else {
		fmt.Fprintf(stderr, "ERROR: %s\n", err)
	}
	exit(1)
}

// HandlePanic logs the stack trace of a panic before letting it crash the
// process. It must be deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Error("Unexpected panic")
		panic(r)
	}
}
