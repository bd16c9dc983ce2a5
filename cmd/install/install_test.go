package install

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/packsync/pkg/config"
	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/pack"
	"github.com/sidkik/packsync/pkg/sync"
	"github.com/sidkik/packsync/pkg/ui"
)

func TestNewInstaller(t *testing.T) {
	tests := []struct {
		name           string
		flags          flags
		userConfig     config.User
		expOptions     sync.Options
		expSelections  map[string]bool
		expInteractive bool
		expMetricsFile string
	}{
		{
			name:  "Defaults",
			flags: flags{},
			expOptions: sync.Options{
				DownloadURL: "https://example.com/pack.toml",
				PackFolder:  "/home/user/minecraft",
				Side:        pack.Client,
			},
			expSelections:  map[string]bool{},
			expInteractive: true,
		},
		{
			name: "UserConfig",
			userConfig: config.User{
				PackFolder:     "/srv/minecraft",
				ManifestFile:   "state.json",
				Side:           "server",
				Parallelism:    4,
				NonInteractive: true,
				Options:        map[string]bool{"Shaders": false},
				MetricsFile:    "/var/lib/packsync.prom",
			},
			expOptions: sync.Options{
				DownloadURL:  "https://example.com/pack.toml",
				PackFolder:   "/srv/minecraft",
				ManifestFile: "state.json",
				Side:         pack.Server,
				Parallelism:  4,
			},
			expSelections:  map[string]bool{"Shaders": false},
			expMetricsFile: "/var/lib/packsync.prom",
		},
		{
			name: "FlagsOverrideConfig",
			flags: flags{
				packFolder:   "/tmp/pack",
				side:         "both",
				parallelism:  2,
				forceOptions: true,
				options:      []string{"Shaders=true", "Minimap=false"},
				metricsFile:  "/tmp/packsync.prom",
			},
			userConfig: config.User{
				PackFolder:  "/srv/minecraft",
				Side:        "server",
				Parallelism: 4,
				Options:     map[string]bool{"Shaders": false, "Sounds": true},
				MetricsFile: "/var/lib/packsync.prom",
			},
			expOptions: sync.Options{
				DownloadURL:  "https://example.com/pack.toml",
				PackFolder:   "/tmp/pack",
				Side:         pack.Both,
				Parallelism:  2,
				ForceOptions: true,
				Selections:   map[string]bool{"Shaders": true, "Minimap": false},
			},
			expSelections:  map[string]bool{"Shaders": true, "Minimap": false, "Sounds": true},
			expMetricsFile: "/tmp/packsync.prom",
		},
		{
			name:  "OptionFlagsApplyWithoutForce",
			flags: flags{options: []string{"Shaders=false"}},
			expOptions: sync.Options{
				DownloadURL: "https://example.com/pack.toml",
				PackFolder:  "/home/user/minecraft",
				Side:        pack.Client,
				Selections:  map[string]bool{"Shaders": false},
			},
			expSelections: map[string]bool{"Shaders": false},
		},
	}

	getWorkingDir = func() (string, error) {
		return "/home/user/minecraft", nil
	}
	isTerminal = func() bool { return true }

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			parseUserConfig = func() (config.User, error) {
				return test.userConfig, nil
			}

			inst, err := newInstaller(test.flags, "https://example.com/pack.toml")
			require.NoError(t, err)
			assert.Equal(t, test.expOptions, inst.updater.Options)
			assert.Equal(t, test.expMetricsFile, inst.metricsFile)

			if test.expInteractive {
				assert.IsType(t, &ui.Terminal{}, inst.updater.UI)
			} else {
				headless, ok := inst.updater.UI.(*ui.Headless)
				require.True(t, ok)
				assert.Equal(t, test.expSelections, headless.Selections)
			}
		})
	}
}

func TestNewInstallerErrors(t *testing.T) {
	tests := []struct {
		name       string
		flags      flags
		userConfig config.User
		configErr  error
	}{
		{
			name:  "BadSide",
			flags: flags{side: "sideways"},
		},
		{
			name:  "BadParallelism",
			flags: flags{parallelism: -2},
		},
		{
			name:  "BadOption",
			flags: flags{options: []string{"Shaders"}},
		},
		{
			name:      "BadConfig",
			configErr: errors.NewFriendlyError("corrupt config"),
		},
	}

	getWorkingDir = func() (string, error) {
		return "/home/user/minecraft", nil
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			parseUserConfig = func() (config.User, error) {
				return test.userConfig, test.configErr
			}

			_, err := newInstaller(test.flags, "https://example.com/pack.toml")
			assert.Error(t, err)
			_, friendly := errors.GetFriendlyMessage(err)
			assert.True(t, friendly)
		})
	}
}

func TestNewUI(t *testing.T) {
	isTerminal = func() bool { return false }
	assert.IsType(t, &ui.Headless{}, newUI(false, nil))

	isTerminal = func() bool { return true }
	assert.IsType(t, &ui.Terminal{}, newUI(false, nil))
	assert.IsType(t, &ui.Headless{}, newUI(true, nil))
}

func TestParseSelections(t *testing.T) {
	selections, err := parseSelections([]string{"Shaders=true", " Mini map = false", "a=b=1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Shaders": true, "Mini map": false, "a=b": true}, selections)

	for _, invalid := range []string{"Shaders", "=true", "Shaders=maybe"} {
		_, err := parseSelections([]string{invalid})
		assert.Error(t, err, invalid)
	}
}
