package migrator

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/temirov/usermigration/internal/utils"
)

const progressLineTemplateConstant = "%s\n"

// Progress receives human readable step messages while a migration runs.
type Progress interface {
	Report(message string)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(message string)

// Report forwards the message.
func (progressFunc ProgressFunc) Report(message string) {
	if progressFunc != nil {
		progressFunc(message)
	}
}

// NopProgress discards every message.
func NopProgress() Progress {
	return ProgressFunc(nil)
}

// NewWriterProgress prints one line per message and flushes buffered writers.
func NewWriterProgress(writer io.Writer) Progress {
	if writer == nil {
		return NopProgress()
	}
	flushingWriter := utils.NewFlushingWriter(writer)
	return ProgressFunc(func(message string) {
		fmt.Fprintf(flushingWriter, progressLineTemplateConstant, message)
	})
}

// NewLoggerProgress records every message at info level with the given fields.
func NewLoggerProgress(logger *zap.Logger, fields ...zap.Field) Progress {
	if logger == nil {
		return NopProgress()
	}
	return ProgressFunc(func(message string) {
		logger.Info(message, fields...)
	})
}

// CombineProgress fans messages out to every sink.
func CombineProgress(sinks ...Progress) Progress {
	return ProgressFunc(func(message string) {
		for _, sink := range sinks {
			if sink != nil {
				sink.Report(message)
			}
		}
	})
}
