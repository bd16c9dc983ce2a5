package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/packsync/cmd/util"
	"github.com/sidkik/packsync/pkg/config"
	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/pack"
	"github.com/sidkik/packsync/pkg/sync"
)

// Mocked for unit testing.
var (
	stdout              io.Writer = os.Stdout
	stdin               io.Reader = os.Stdin
	parseUserConfig               = config.ParseUser
	writeUserConfig               = config.WriteUser
	getUserConfigPath             = config.GetUserConfigPath
	getWorkingDirectory           = os.Getwd
)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.User
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the packsync user configuration",
		Long: "Setup the defaults used by `packsync install`. Fields that aren't\n" +
			"set by flags are prompted for.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.PackFolder, "pack-folder", "",
		"Set the pack folder in the config. "+
			"Optional: If not set, `packsync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Side, "side", "",
		"Set the side in the config. "+
			"Optional: If not set, `packsync config` will interactively prompt.")
	cmd.Flags().IntVar(&cliOpts.Parallelism, "parallelism", 0,
		"Set the number of concurrent downloads in the config. "+
			"Optional: If not set, `packsync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.ManifestFile, "manifest", "",
		"Set the manifest path in the config.")
	cmd.Flags().BoolVar(&cliOpts.NonInteractive, "non-interactive", false,
		"Never prompt for optional files during installs.")
	cmd.Flags().StringVar(&cliOpts.MetricsFile, "metrics-file", "",
		"Set the path that run metrics are written to.")
	cmd.Flags().StringVar(&cliOpts.S3Region, "s3-region", "",
		"Set the AWS region used for s3:// packs.")
	cmd.Flags().StringVar(&cliOpts.S3Endpoint, "s3-endpoint", "",
		"Set a custom S3 endpoint, such as a MinIO server.")

	// Setup the commands for querying the contents of the user config.
	type getterSpec struct {
		use, short string
		fn         func(config.User) string
	}

	getters := []getterSpec{
		{
			use:   "get-pack-folder",
			short: "Get the currently configured pack folder",
			fn:    func(cfg config.User) string { return cfg.PackFolder },
		},
		{
			use:   "get-side",
			short: "Get the currently configured side",
			fn:    func(cfg config.User) string { return cfg.Side },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseUserConfig()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Get the path of the user config",
		Run: func(_ *cobra.Command, _ []string) {
			path, err := getUserConfigPath()
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "get user config path"))
			}
			fmt.Fprintln(stdout, path)
		},
	})

	return cmd
}

// SetupConfig prompts for the fields that aren't set in `cliOpts`, and
// writes the resulting config.
func SetupConfig(cliOpts config.User) error {
	cfg, err := generateConfig(cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := writeUserConfig(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := getUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func sideValidationFn(side string) (string, bool) {
	if _, err := pack.ParseSide(side); err != nil {
		return err.Error(), false
	}
	return "", true
}

func parallelismValidationFn(s string) (string, bool) {
	if n, err := strconv.Atoi(s); err != nil || n < 1 {
		return "The number of concurrent downloads must be a positive number.", false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is. Fields that aren't set by `cliOpts` keep the values from
// the current config, which are offered as answers.
func generateConfig(cliOpts config.User) (config.User, error) {
	currConfig, err := parseUserConfig()
	if err != nil {
		currConfig = config.User{}
		log.WithError(err).Debug("Failed to read current config")
	}

	cfg := cliOpts
	cfg.Options = currConfig.Options
	if cfg.ManifestFile == "" {
		cfg.ManifestFile = currConfig.ManifestFile
	}
	if cfg.MetricsFile == "" {
		cfg.MetricsFile = currConfig.MetricsFile
	}
	if cfg.S3Region == "" {
		cfg.S3Region = currConfig.S3Region
	}
	if cfg.S3Endpoint == "" {
		cfg.S3Endpoint = currConfig.S3Endpoint
	}
	cfg.NonInteractive = cfg.NonInteractive || currConfig.NonInteractive

	var prompts []prompt
	if cliOpts.PackFolder == "" {
		defaultFolder, err := getWorkingDirectory()
		if err != nil {
			log.WithError(err).Info("Failed to guess pack folder")
		}

		prompts = append(prompts, prompt{
			helpString: "Enter the folder that packs are installed into.\n" +
				"It defaults to the current directory.",
			prompt:        "Pack folder",
			defaultAnswer: defaultFolder,
			currAnswer:    currConfig.PackFolder,
			field:         &cfg.PackFolder,
		})
	}

	if cliOpts.Side == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the side to install files for (client, server or both).\n" +
				"Files that are only meant for the other side are skipped.",
			prompt:        "Side",
			defaultAnswer: string(pack.Client),
			currAnswer:    currConfig.Side,
			field:         &cfg.Side,
			validationFn:  sideValidationFn,
		})
	}

	var parallelism string
	if cliOpts.Parallelism == 0 {
		var currParallelism string
		if currConfig.Parallelism != 0 {
			currParallelism = strconv.Itoa(currConfig.Parallelism)
		}

		prompts = append(prompts, prompt{
			helpString:    "Enter the number of files to download at once.",
			prompt:        "Concurrent downloads",
			defaultAnswer: strconv.Itoa(sync.DefaultParallelism),
			currAnswer:    currParallelism,
			field:         &parallelism,
			validationFn:  parallelismValidationFn,
		})
	}

	stdinReader := bufio.NewReader(stdin)
	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = promptUser(stdinReader, prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.User{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	if parallelism != "" {
		// The answer was validated by parallelismValidationFn.
		cfg.Parallelism, _ = strconv.Atoi(parallelism)
	}
	return cfg, nil
}

func promptUser(stdinReader *bufio.Reader, helpString, prompt, defaultAnswer,
	currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	if nOptions := len(options); nOptions > 1 {
		// defaultAnswer or currAnswer exists.
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimRight(choiceStr, "\n")

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					// Try again if the input is invalid.
					continue
				}
			}

			if choice == nOptions {
				// Enter manually.
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\n"), nil
}
