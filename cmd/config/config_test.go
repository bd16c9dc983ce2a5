package config

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/packsync/pkg/config"
	"github.com/sidkik/packsync/pkg/errors"
)

func TestPromptUser(t *testing.T) {
	tests := []struct {
		name                                                 string
		helpString, prompt, defaultAnswer, currAnswer, stdin string
		expPrompt, expResult                                 string
	}{
		{
			name:          "No default or current answer",
			helpString:    "explanation",
			prompt:        "prompt",
			defaultAnswer: "",
			currAnswer:    "",
			stdin:         "user input\n",
			expPrompt: "explanation\n" +
				"prompt:\n" +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "No default answer only, chose current answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "",
			currAnswer:    "current answer",
			stdin:         "1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. current answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: \n",
			expResult: "current answer",
		},
		{
			name:          "No default answer only, enter manually",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "",
			currAnswer:    "current answer",
			stdin: "2\n" +
				"user input\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. current answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: " +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "No current answer only, chose default answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "",
			stdin:         "1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: \n",
			expResult: "default answer",
		},
		{
			name:          "No current answer only, enter manually",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "",
			stdin: "2\n" +
				"user input\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: " +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "Same default answer and current answer, chose default answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "default answer",
			stdin:         "1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: \n",
			expResult: "default answer",
		},
		{
			name:          "Same default answer and current answer, enter manually",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "default answer",
			stdin: "2\n" +
				"user input",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: " +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "Different default answer and current answer, chose default answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin:         "1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expResult: "default answer",
		},
		{
			name:          "Empty response -- pick default",
			helpString:    "help",
			prompt:        "prompt",
			defaultAnswer: "one",
			currAnswer:    "two",
			stdin:         "\n",
			expPrompt: "help\n" +
				"prompt:\n" +
				"\n" +
				"\t1. one (recommended)\n" +
				"\t2. two\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expResult: "one",
		},
		{
			name:          "Different default answer and current answer, chose current answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin:         "2\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expResult: "current answer",
		},
		{
			name:          "Different default answer and current answer, enter manually",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin: "3\n" +
				"user input\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: " +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "Invalid input",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin: "invalid input\n" +
				"1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: " +
				"Please choose one [1-3]: \n",
			expResult: "default answer",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			out := bytes.NewBuffer(nil)
			stdout = out

			resp, err := promptUser(bufio.NewReader(strings.NewReader(test.stdin+"\n")),
				test.helpString, test.prompt, test.defaultAnswer, test.currAnswer)
			assert.NoError(t, err)
			assert.Equal(t, test.expResult, resp)
			assert.Equal(t, test.expPrompt, out.String())
		})
	}
}

func TestPromptUserEOF(t *testing.T) {
	stdout = bytes.NewBuffer(nil)
	_, err := promptUser(bufio.NewReader(strings.NewReader("")), "help", "prompt", "default", "")
	assert.Error(t, err)
}

func TestSideValidation(t *testing.T) {
	for _, side := range []string{"client", "server", "both", "Server"} {
		_, ok := sideValidationFn(side)
		assert.True(t, ok, side)
	}

	msg, ok := sideValidationFn("sideways")
	assert.False(t, ok)
	assert.Contains(t, msg, "sideways")
}

func TestParallelismValidation(t *testing.T) {
	tests := []struct {
		input string
		exp   bool
	}{
		{"1", true},
		{"16", true},
		{"0", false},
		{"-3", false},
		{"many", false},
	}

	for _, test := range tests {
		_, ok := parallelismValidationFn(test.input)
		assert.Equal(t, test.exp, ok, test.input)
	}
}

func TestGenerateConfig(t *testing.T) {
	getWorkingDirectory = func() (string, error) {
		return "/home/user/minecraft", nil
	}
	parseUserConfig = func() (config.User, error) {
		return config.User{
			Side:        "server",
			Parallelism: 4,
			Options:     map[string]bool{"Shaders": true},
			S3Region:    "eu-west-1",
		}, nil
	}

	tests := []struct {
		name      string
		cliOpts   config.User
		stdin     string
		expConfig config.User
	}{
		{
			name: "PromptAll",
			// Pick the default folder, type an invalid side and then the
			// current one, and enter the parallelism manually.
			stdin: "1\n" +
				"3\nsideways\n2\n" +
				"3\n12\n",
			expConfig: config.User{
				PackFolder:  "/home/user/minecraft",
				Side:        "server",
				Parallelism: 12,
				Options:     map[string]bool{"Shaders": true},
				S3Region:    "eu-west-1",
			},
		},
		{
			name: "FlagsSkipPrompts",
			cliOpts: config.User{
				PackFolder:  "/srv/pack",
				Side:        "client",
				Parallelism: 2,
				S3Region:    "us-east-1",
			},
			expConfig: config.User{
				PackFolder:  "/srv/pack",
				Side:        "client",
				Parallelism: 2,
				Options:     map[string]bool{"Shaders": true},
				S3Region:    "us-east-1",
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			stdout = bytes.NewBuffer(nil)
			stdin = strings.NewReader(test.stdin)

			cfg, err := generateConfig(test.cliOpts)
			require.NoError(t, err)
			assert.Equal(t, test.expConfig, cfg)
		})
	}
}

func TestSetupConfig(t *testing.T) {
	var written config.User
	writeUserConfig = func(cfg config.User) error {
		written = cfg
		return nil
	}
	getUserConfigPath = func() (string, error) {
		return "/home/user/.packsync.yaml", nil
	}
	parseUserConfig = func() (config.User, error) {
		return config.User{}, errors.FileNotFound{Path: "/home/user/.packsync.yaml"}
	}

	out := bytes.NewBuffer(nil)
	stdout = out
	cliOpts := config.User{PackFolder: "/srv/pack", Side: "both", Parallelism: 3}
	require.NoError(t, SetupConfig(cliOpts))
	assert.Equal(t, cliOpts, written)
	assert.Equal(t, "Wrote config to /home/user/.packsync.yaml\n", out.String())
}
