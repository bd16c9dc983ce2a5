package version

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sidkik/packsync/pkg/hash"
	"github.com/sidkik/packsync/pkg/pack"
	"github.com/sidkik/packsync/pkg/version"
)

// Mocked for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of packsync.",
		Long: "Print the version of packsync, along with the pack formats and\n" +
			"hash formats that it supports.",
		Run: func(_ *cobra.Command, _ []string) {
			run()
		},
	}
}

func run() {
	fmt.Fprintf(stdout, "version:      %s\n", version.Version)
	fmt.Fprintf(stdout, "go version:   %s\n", runtime.Version())
	fmt.Fprintf(stdout, "pack formats: %s\n", pack.SupportedFormats())
	fmt.Fprintf(stdout, "hash formats: %s\n", hash.Formats())
}
