package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	// Embedded zone database so configured timezones resolve on every platform.
	_ "time/tzdata"
)

// traceLevelValue sits below slog.LevelDebug (-4).
const traceLevelValue = slog.Level(-8)

var (
	globalLogger   *CentralLogger
	globalLoggerMu sync.Mutex
)

// SetGlobal installs cl as the process wide logger. Call it once at startup.
func SetGlobal(cl *CentralLogger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = cl
}

// Global returns the process wide logger. Before SetGlobal it is an info
// level console logger, which is what tests and library callers get.
func Global() *CentralLogger {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()

	if globalLogger == nil {
		globalLogger = &CentralLogger{
			config:       &LoggingConfig{DefaultLevel: DefaultLogLevel},
			defaultRoute: newTextHandler(os.Stdout, slog.LevelInfo, time.Local),
		}
	}
	return globalLogger
}

type loggerContextKey struct{ name string }

// TraceIDKey is the context key read by Logger.WithContext.
var TraceIDKey = loggerContextKey{"trace_id"}

// WithTraceID returns a copy of ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func traceIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}

// moduleRoute is the resolved destination of one configured module.
type moduleRoute struct {
	handler slog.Handler
	level   slog.Level
}

// CentralLogger hands out module loggers. Records go to the console and the
// main log file unless the module has a dedicated output, in which case they
// go to that file (and optionally the console) only.
type CentralLogger struct {
	config       *LoggingConfig
	defaultRoute slog.Handler
	routes       map[string]moduleRoute

	mu      sync.RWMutex
	writers []*BufferedFileWriter
}

// NewCentralLogger opens every configured output. Modules sharing a file
// path share one writer.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, errors.New("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)

	tz, err := resolveTimezone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	cl := &CentralLogger{
		config: cfg,
		routes: make(map[string]moduleRoute, len(cfg.ModuleOutputs)),
	}
	opened := make(map[string]*BufferedFileWriter)
	open := func(path string) (*BufferedFileWriter, error) {
		if w, ok := opened[path]; ok {
			return w, nil
		}
		if err := ensureFileDirectory(path); err != nil {
			return nil, err
		}
		w, err := NewBufferedFileWriter(path)
		if err != nil {
			return nil, err
		}
		opened[path] = w
		cl.writers = append(cl.writers, w)
		return w, nil
	}
	fail := func(err error) (*CentralLogger, error) {
		_ = cl.Close()
		return nil, err
	}

	var console slog.Handler
	if cfg.Console.Enabled {
		console = newTextHandler(os.Stdout, parseLogLevel(cfg.Console.Level), tz)
	}

	var mainFile slog.Handler
	if cfg.FileOutput.Enabled {
		w, err := open(cfg.FileOutput.Path)
		if err != nil {
			return fail(fmt.Errorf("failed to open main log file: %w", err))
		}
		mainFile = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLogLevel(cfg.FileOutput.Level)})
	}

	cl.defaultRoute = newFanoutHandler(console, mainFile)
	if console == nil && mainFile == nil {
		cl.defaultRoute = newTextHandler(os.Stdout, parseLogLevel(cfg.DefaultLevel), tz)
	}

	for module, out := range cfg.ModuleOutputs {
		if !out.Enabled {
			continue
		}
		level := cl.moduleLevel(module)
		if out.Level != "" {
			level = parseLogLevel(out.Level)
		}

		w, err := open(out.FilePath)
		if err != nil {
			return fail(fmt.Errorf("failed to open log file for module %s: %w", module, err))
		}
		handlers := []slog.Handler{slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})}
		if out.ConsoleAlso && cfg.Console.Enabled {
			handlers = append(handlers, newTextHandler(os.Stdout, level, tz))
		}
		cl.routes[module] = moduleRoute{handler: newFanoutHandler(handlers...), level: level}
	}

	return cl, nil
}

func resolveTimezone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", name, err)
	}
	return tz, nil
}

// moduleLevel is the level from module_levels, else the default level.
func (cl *CentralLogger) moduleLevel(module string) slog.Level {
	if lvl, ok := cl.config.ModuleLevels[module]; ok {
		return parseLogLevel(lvl)
	}
	return parseLogLevel(cl.config.DefaultLevel)
}

// Module returns the logger for a top level module such as "training".
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}
	if route, ok := cl.routes[name]; ok {
		return &moduleLogger{module: name, logger: slog.New(route.handler), level: route.level}
	}
	return &moduleLogger{module: name, logger: slog.New(cl.defaultRoute), level: cl.moduleLevel(name)}
}

// Flush pushes buffered records to the OS without syncing.
func (cl *CentralLogger) Flush() error {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	errs := make([]error, 0, len(cl.writers))
	for _, w := range cl.writers {
		if err := w.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes, syncs and closes every log file.
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()

	errs := make([]error, 0, len(cl.writers))
	for _, w := range cl.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", w.FilePath(), err))
		}
	}
	cl.writers = nil
	return errors.Join(errs...)
}

func ensureFileDirectory(path string) error {
	dir := filepath.Dir(path)
	if path == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// parseLogLevel maps a configured level name to slog. Unknown names are info.
func parseLogLevel(level string) slog.Level {
	switch LogLevel(level) {
	case LogLevelTrace:
		return traceLevelValue
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
