package utils_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/usermigration/internal/utils"
)

const (
	testLoggerFactoryCaseSupportedFormatConstant   = "supported_log_level_%s_format_%s"
	testLoggerFactoryCaseUnsupportedLevelConstant  = "unsupported_log_level"
	testLoggerFactoryCaseUnsupportedFormatConstant = "unsupported_log_format"
	testLoggerFactorySubtestTemplateConstant       = "%d_%s"
	testInvalidLogLevelConstant                    = "invalid"
	testInvalidLogFormatConstant                   = "invalid"
	testLogMessageConstant                         = "logger_factory_test_message"
)

func TestLoggerFactoryCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name                string
		requestedLogLevel   utils.LogLevel
		requestedLogFormat  utils.LogFormat
		expectError         bool
		expectStructuredLog bool
		expectDebugOutput   bool
	}{
		{
			name:                fmt.Sprintf(testLoggerFactoryCaseSupportedFormatConstant, utils.LogLevelDebug, utils.LogFormatStructured),
			requestedLogLevel:   utils.LogLevelDebug,
			requestedLogFormat:  utils.LogFormatStructured,
			expectStructuredLog: true,
			expectDebugOutput:   true,
		},
		{
			name:                fmt.Sprintf(testLoggerFactoryCaseSupportedFormatConstant, utils.LogLevelInfo, utils.LogFormatStructured),
			requestedLogLevel:   utils.LogLevelInfo,
			requestedLogFormat:  utils.LogFormatStructured,
			expectStructuredLog: true,
		},
		{
			name:               fmt.Sprintf(testLoggerFactoryCaseSupportedFormatConstant, utils.LogLevelInfo, utils.LogFormatConsole),
			requestedLogLevel:  utils.LogLevelInfo,
			requestedLogFormat: utils.LogFormatConsole,
		},
		{
			name:                "mixed_case_names",
			requestedLogLevel:   utils.LogLevel(" DEBUG "),
			requestedLogFormat:  utils.LogFormat("Structured"),
			expectStructuredLog: true,
			expectDebugOutput:   true,
		},
		{
			name:               testLoggerFactoryCaseUnsupportedLevelConstant,
			requestedLogLevel:  utils.LogLevel(testInvalidLogLevelConstant),
			requestedLogFormat: utils.LogFormatStructured,
			expectError:        true,
		},
		{
			name:               testLoggerFactoryCaseUnsupportedFormatConstant,
			requestedLogLevel:  utils.LogLevelInfo,
			requestedLogFormat: utils.LogFormat(testInvalidLogFormatConstant),
			expectError:        true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testLoggerFactorySubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			var capturedOutput bytes.Buffer
			loggerFactory := utils.NewLoggerFactoryWithWriter(&capturedOutput)

			logger, creationError := loggerFactory.CreateLogger(testCase.requestedLogLevel, testCase.requestedLogFormat)
			if testCase.expectError {
				require.Error(testInstance, creationError)
				require.Nil(testInstance, logger)
				return
			}
			require.NoError(testInstance, creationError)
			require.NotNil(testInstance, logger)

			logger.Debug(testLogMessageConstant)
			require.Equal(testInstance, testCase.expectDebugOutput, capturedOutput.Len() > 0)

			capturedOutput.Reset()
			logger.Info(testLogMessageConstant)
			trimmedOutput := bytes.TrimSpace(capturedOutput.Bytes())
			require.Contains(testInstance, string(trimmedOutput), testLogMessageConstant)
			require.Equal(testInstance, testCase.expectStructuredLog, json.Valid(trimmedOutput))
		})
	}
}

func TestLoggerFactoryProgressLogger(testInstance *testing.T) {
	testCases := []struct {
		name           string
		logFormat      utils.LogFormat
		expectedOutput string
		expectSilence  bool
	}{
		{name: "console_prints_bare_messages", logFormat: utils.LogFormatConsole, expectedOutput: "exporting files\n"},
		{name: "structured_follows_log_level", logFormat: utils.LogFormatStructured, expectSilence: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testLoggerFactorySubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			var capturedOutput bytes.Buffer
			outputs, creationError := utils.NewLoggerFactoryWithWriter(&capturedOutput).CreateLoggerOutputs(utils.LogLevelError, testCase.logFormat)
			require.NoError(testInstance, creationError)

			outputs.ProgressLogger.Info("exporting files")
			if testCase.expectSilence {
				require.Empty(testInstance, capturedOutput.String())
				return
			}
			require.Equal(testInstance, testCase.expectedOutput, capturedOutput.String())
		})
	}
}
