// Package utils exposes reusable helpers consumed by the command-line interface.
//
// It houses the ConfigurationLoader, which layers embedded defaults, configuration
// files, and environment variables through Viper, and the LoggerFactory, which
// builds the zap loggers used for diagnostics and progress output.
package utils
