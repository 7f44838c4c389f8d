package utils

import (
	"io"
	"sync"
)

const lineTerminatorConstant = "\n"

// FlushingWriter makes progress output visible immediately by flushing buffered writers after every write.
// Concurrent writers never interleave within a single write.
type FlushingWriter struct {
	writer io.Writer
	mutex  sync.Mutex
}

// NewFlushingWriter wraps writer. Writers that are already flushing are returned unchanged.
func NewFlushingWriter(writer io.Writer) *FlushingWriter {
	if writer == nil {
		return nil
	}
	if flushingWriter, alreadyWrapped := writer.(*FlushingWriter); alreadyWrapped {
		return flushingWriter
	}
	return &FlushingWriter{writer: writer}
}

// Write delegates to the underlying writer and flushes it when possible.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return 0, nil
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()
	return flushingWriter.writeAndFlush(data)
}

// WriteLine writes message followed by a newline as a single flushed write.
func (flushingWriter *FlushingWriter) WriteLine(message string) error {
	_, writeError := flushingWriter.Write([]byte(message + lineTerminatorConstant))
	return writeError
}

func (flushingWriter *FlushingWriter) writeAndFlush(data []byte) (int, error) {
	bytesWritten, writeError := flushingWriter.writer.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}

	if flushableWriter, implementsFlush := flushingWriter.writer.(interface{ Flush() error }); implementsFlush {
		if flushError := flushableWriter.Flush(); flushError != nil {
			return bytesWritten, flushError
		}
	}
	return bytesWritten, nil
}
