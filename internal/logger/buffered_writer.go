package logger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	// DefaultBufferSize is the write buffer size for log files.
	DefaultBufferSize = 32 * 1024
	// DefaultFlushInterval bounds how long a record may sit in the buffer.
	DefaultFlushInterval = 5 * time.Second
)

// errWriterClosed is returned by Write after Close.
var errWriterClosed = errors.New("log writer is closed")

// BufferedFileWriter appends to a log file through a buffer that is flushed
// on a timer, on Flush and on Close.
type BufferedFileWriter struct {
	path     string
	size     int
	interval time.Duration

	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// BufferedWriterOption configures a BufferedFileWriter.
type BufferedWriterOption func(*BufferedFileWriter)

// WithBufferSize sets the write buffer size.
func WithBufferSize(size int) BufferedWriterOption {
	return func(w *BufferedFileWriter) {
		if size > 0 {
			w.size = size
		}
	}
}

// WithFlushInterval sets the background flush interval.
func WithFlushInterval(interval time.Duration) BufferedWriterOption {
	return func(w *BufferedFileWriter) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// NewBufferedFileWriter opens path for appending and starts the flush timer.
func NewBufferedFileWriter(path string, opts ...BufferedWriterOption) (*BufferedFileWriter, error) {
	w := &BufferedFileWriter{
		path:     path,
		size:     DefaultBufferSize,
		interval: DefaultFlushInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	w.file = f
	w.buf = bufio.NewWriterSize(f, w.size)

	go w.flushLoop()
	return w, nil
}

func (w *BufferedFileWriter) flushLoop() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			_ = w.Flush()
		}
	}
}

// Write implements io.Writer.
func (w *BufferedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf == nil {
		return 0, errWriterClosed
	}
	return w.buf.Write(p)
}

// Flush writes buffered data to the file.
func (w *BufferedFileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", w.path, err)
	}
	return nil
}

// Close flushes, syncs and closes the file. Later calls return the first result.
func (w *BufferedFileWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.stop)
		<-w.done

		w.mu.Lock()
		defer w.mu.Unlock()
		w.closeErr = errors.Join(w.buf.Flush(), w.file.Sync(), w.file.Close())
		w.buf, w.file = nil, nil
	})
	return w.closeErr
}

// FilePath returns the path of the underlying file.
func (w *BufferedFileWriter) FilePath() string {
	return w.path
}
