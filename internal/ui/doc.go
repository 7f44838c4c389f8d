// Package ui provides helpers for formatting human-readable console output.
//
// The helpers translate migration job outcomes into concise messages so that
// feedback remains readable for CLI users while detailed telemetry continues
// to flow through structured loggers.
package ui
