package install

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sidkik/packsync/cmd/util"
	"github.com/sidkik/packsync/pkg/config"
	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/metrics"
	"github.com/sidkik/packsync/pkg/pack"
	"github.com/sidkik/packsync/pkg/source"
	"github.com/sidkik/packsync/pkg/sync"
	"github.com/sidkik/packsync/pkg/ui"
)

// Mocked for unit testing.
var (
	stdout          io.Writer = os.Stdout
	stdin           io.Reader = os.Stdin
	parseUserConfig           = config.ParseUser
	getWorkingDir             = os.Getwd
	exit                      = os.Exit
	isTerminal                = func() bool {
		return terminal.IsTerminal(int(os.Stdin.Fd()))
	}
)

type flags struct {
	packFolder     string
	manifestFile   string
	side           string
	parallelism    int
	nonInteractive bool
	forceOptions   bool
	options        []string
	metricsFile    string
}

// New creates a new `install` command.
func New() *cobra.Command {
	var cliFlags flags
	cmd := &cobra.Command{
		Use:   "install <pack-url>",
		Short: "Install or update a pack",
		Long: "Install the pack described by the pack.toml at the given URL, or\n" +
			"bring an existing installation up to date. Only files that changed\n" +
			"since the last run are downloaded.\n\n" +
			"http(s)://, s3:// and file:// URLs are supported, as well as local paths.",
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			inst, err := newInstaller(cliFlags, args[0])
			if err != nil {
				util.HandleFatalError(err)
				return
			}

			if err := inst.run(); err != nil {
				exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&cliFlags.packFolder, "pack-folder", "",
		"The folder to install the pack into. Defaults to the current directory.")
	cmd.Flags().StringVar(&cliFlags.manifestFile, "manifest", "",
		"The path to the manifest that tracks installed files. "+
			"Relative paths are relative to the pack folder.")
	cmd.Flags().StringVar(&cliFlags.side, "side", "",
		"The side to install files for (client, server or both).")
	cmd.Flags().IntVar(&cliFlags.parallelism, "parallelism", 0,
		"The number of files to download at once.")
	cmd.Flags().BoolVar(&cliFlags.nonInteractive, "non-interactive", false,
		"Don't prompt for optional files. Selections are taken from --option "+
			"and the user config instead.")
	cmd.Flags().BoolVar(&cliFlags.forceOptions, "force-options", false,
		"Ask about every optional file, even if the pack didn't add any.")
	cmd.Flags().StringSliceVar(&cliFlags.options, "option", nil,
		"Select an optional file without prompting, e.g. --option Shaders=false. "+
			"The selection is applied even if the pack hasn't changed.")
	cmd.Flags().StringVar(&cliFlags.metricsFile, "metrics-file", "",
		"Write metrics about the run to this file in the Prometheus textfile format.")
	return cmd
}

type installer struct {
	updater     sync.Updater
	metricsFile string
}

// newInstaller combines the command line flags with the user config. Flags
// take precedence over the config.
func newInstaller(cliFlags flags, downloadURL string) (installer, error) {
	userConfig, err := parseUserConfig()
	if err != nil {
		return installer{}, errors.WithContext(err, "parse user config")
	}

	packFolder := firstNonEmpty(cliFlags.packFolder, userConfig.PackFolder)
	if packFolder == "" {
		packFolder, err = getWorkingDir()
		if err != nil {
			return installer{}, errors.WithContext(err, "get working directory")
		}
	}
	packFolder, err = filepath.Abs(packFolder)
	if err != nil {
		return installer{}, errors.WithContext(err, "resolve pack folder")
	}

	side, err := pack.ParseSide(firstNonEmpty(cliFlags.side, userConfig.Side, string(pack.Client)))
	if err != nil {
		return installer{}, err
	}

	parallelism := cliFlags.parallelism
	if parallelism == 0 {
		parallelism = userConfig.Parallelism
	}
	if parallelism < 0 {
		return installer{}, errors.NewFriendlyError(
			"--parallelism must be a positive number, but got %d.", parallelism)
	}

	selections := map[string]bool{}
	for name, selected := range userConfig.Options {
		selections[name] = selected
	}
	flagSelections, err := parseSelections(cliFlags.options)
	if err != nil {
		return installer{}, err
	}
	for name, selected := range flagSelections {
		selections[name] = selected
	}

	// Selections from flags are applied right away. The ones in the config
	// only answer the prompt for new optional files.
	var requested map[string]bool
	if len(flagSelections) != 0 {
		requested = flagSelections
	}

	nonInteractive := cliFlags.nonInteractive || userConfig.NonInteractive ||
		len(flagSelections) != 0
	router := source.NewRouter(source.NewHTTPSource(), source.NewFileSource(),
		source.NewS3Source(source.S3Config{
			Region:   userConfig.S3Region,
			Endpoint: userConfig.S3Endpoint,
		}))

	return installer{
		updater: sync.Updater{
			Options: sync.Options{
				DownloadURL:  downloadURL,
				PackFolder:   packFolder,
				ManifestFile: firstNonEmpty(cliFlags.manifestFile, userConfig.ManifestFile),
				Side:         side,
				Parallelism:  parallelism,
				ForceOptions: cliFlags.forceOptions,
				Selections:   requested,
			},
			UI:     newUI(nonInteractive, selections),
			Source: router,
			Log:    log.StandardLogger(),
			Clock:  clockwork.NewRealClock(),
		},
		metricsFile: firstNonEmpty(cliFlags.metricsFile, userConfig.MetricsFile),
	}, nil
}

func (inst installer) run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	userInterface := inst.updater.UI
	report, err := inst.updater.Run(ctx)
	if inst.metricsFile != "" {
		if err := metrics.WriteTextfile(inst.metricsFile); err != nil {
			log.WithError(err).WithField("path", inst.metricsFile).Warn("Failed to write metrics")
		}
	}

	if err != nil {
		userInterface.Fatal(err)
		return err
	}

	if !report.UpToDate {
		fmt.Fprintf(stdout, "Installed %d files (%d unchanged, %d removed).\n",
			report.Fetched, report.Skipped, report.Deleted)
	}

	if len(report.Failures) != 0 {
		err := errors.NewFriendlyError("%d files failed to install. "+
			"They will be retried on the next run.", len(report.Failures))
		userInterface.Fatal(err)
		return err
	}
	return nil
}

func newUI(nonInteractive bool, selections map[string]bool) ui.UserInterface {
	if nonInteractive || !isTerminal() {
		return ui.NewHeadless(selections)
	}
	return ui.NewTerminal(stdout, stdin, clockwork.NewRealClock())
}

// parseSelections parses selections of the form `name=true`.
func parseSelections(options []string) (map[string]bool, error) {
	selections := map[string]bool{}
	for _, option := range options {
		i := strings.LastIndex(option, "=")
		if i <= 0 {
			return nil, errors.NewFriendlyError("Invalid option %q. "+
				"Expected the form <name>=<true|false>.", option)
		}

		selected, err := strconv.ParseBool(strings.TrimSpace(option[i+1:]))
		if err != nil {
			return nil, errors.NewFriendlyError("Invalid option %q. "+
				"Expected the form <name>=<true|false>.", option)
		}
		selections[strings.TrimSpace(option[:i])] = selected
	}
	return selections, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
