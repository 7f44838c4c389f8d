package utils_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/usermigration/internal/utils"
)

func TestCommandContextAccessor(testInstance *testing.T) {
	accessor := utils.NewCommandContextAccessor()

	_, configurationAvailable := accessor.ConfigurationFilePath(context.Background())
	require.False(testInstance, configurationAvailable)

	executionContext := accessor.WithConfigurationFilePath(context.Background(), "/etc/usermigration/config.yaml")
	executionContext = accessor.WithOutputFormat(executionContext, "yaml")

	configurationFilePath, configurationAvailable := accessor.ConfigurationFilePath(executionContext)
	require.True(testInstance, configurationAvailable)
	require.Equal(testInstance, "/etc/usermigration/config.yaml", configurationFilePath)

	outputFormat, outputAvailable := accessor.OutputFormat(executionContext)
	require.True(testInstance, outputAvailable)
	require.Equal(testInstance, "yaml", outputFormat)
}
