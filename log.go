package onset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a simple logger interface accepting key-value pair parameters. It
// must be safe for concurrent use: the host, the worker goroutine and the
// process stream readers all log through the same Logger.
type Logger interface {
	// Logs an info message.
	Info(msg string, keysAndValues ...interface{})
	// Logs an error.
	Error(err error, msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Error(error, string, ...interface{}) {}

// ZeroLogger implements Logger with zerolog.
type ZeroLogger struct {
	logger zerolog.Logger
	file   *os.File
}

// NewLogger creates the logger of the named service. When enabled is false
// the returned logger discards everything. Events are written to out, or to a
// console writer on stderr when out is nil. When dir is not empty, events are
// also appended as JSON lines to <dir>/<name>.log; failing to open that file
// is returned.
func NewLogger(name string, enabled bool, out io.Writer, dir string) (*ZeroLogger, error) {
	if !enabled {
		return &ZeroLogger{logger: zerolog.Nop()}, nil
	}
	if out == nil {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	var file *os.File
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dir, name+".log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		out = zerolog.MultiLevelWriter(out, f)
	}

	logger := zerolog.New(zerolog.SyncWriter(out)).With().
		Timestamp().
		Str("service", name).
		Logger()
	return &ZeroLogger{logger: logger, file: file}, nil
}

// Info logs an info-level message.
func (z *ZeroLogger) Info(msg string, keysAndValues ...interface{}) {
	z.logger.Info().Fields(keysAndValues).Msg(msg)
}

// Error logs an error-level message.
func (z *ZeroLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Close releases the log file, if any.
func (z *ZeroLogger) Close() error {
	if z.file == nil {
		return nil
	}
	err := z.file.Close()
	z.file = nil
	return err
}
