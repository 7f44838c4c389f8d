package cli

import (
	"bytes"
	"context"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

const versionExitSentinelConstant = "version-exit"

func TestApplicationVersionFlagShortCircuitsCommands(t *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
	}{
		{name: "root", arguments: []string{"--version"}},
		{name: "subcommand_without_account", arguments: []string{"status", "--version"}},
		{name: "unreadable_configuration", arguments: []string{"--config", "/nonexistent/config.yaml", "--version"}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			application := NewApplication()
			application.versionResolver = func(context.Context) string {
				return "v2.0.0"
			}
			exitCode := -1
			application.exitFunction = func(code int) {
				exitCode = code
				panic(versionExitSentinelConstant)
			}

			outputBuffer := &bytes.Buffer{}
			application.rootCommand.SetOut(outputBuffer)
			application.rootCommand.SetErr(&bytes.Buffer{})
			application.rootCommand.SetArgs(testCase.arguments)

			require.PanicsWithValue(t, versionExitSentinelConstant, func() {
				_ = application.rootCommand.Execute()
			})
			require.Equal(t, "user-migration version: v2.0.0\n", outputBuffer.String())
			require.Equal(t, 0, exitCode)
		})
	}
}

func TestVersionFromBuildInformation(t *testing.T) {
	testCases := []struct {
		name             string
		buildInformation *debug.BuildInfo
		available        bool
		expectedVersion  string
	}{
		{name: "unavailable", expectedVersion: "dev"},
		{name: "local_build", buildInformation: &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, available: true, expectedVersion: "dev"},
		{name: "empty_version", buildInformation: &debug.BuildInfo{Main: debug.Module{Version: "  "}}, available: true, expectedVersion: "dev"},
		{name: "tagged_release", buildInformation: &debug.BuildInfo{Main: debug.Module{Version: " v1.4.2 "}}, available: true, expectedVersion: "v1.4.2"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.expectedVersion, versionFromBuildInformation(testCase.buildInformation, testCase.available))
		})
	}
}
