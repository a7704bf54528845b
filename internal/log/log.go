package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.RWMutex
	sugar    *zap.SugaredLogger
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	output   zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	jsonMode bool
	initOnce sync.Once
)

// initLogger builds the global zap logger on first use (stderr, console encoding).
func initLogger() {
	initOnce.Do(rebuild)
}

func rebuild() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if jsonMode {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, output, level)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))

	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
}

// SetLevel changes the minimum level. Unknown values leave the level unchanged.
func SetLevel(l Level) {
	initLogger()
	switch Level(strings.ToUpper(string(l))) {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		level.SetLevel(zapcore.InfoLevel)
	case LevelWarn:
		level.SetLevel(zapcore.WarnLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	}
}

// SetFormat switches between "console" (default) and "json" encoding.
func SetFormat(format string) {
	initLogger()
	jsonMode = strings.EqualFold(format, "json")
	rebuild()
}

// SetOutput redirects log lines, mainly for tests.
func SetOutput(w io.Writer) {
	initLogger()
	output = zapcore.Lock(zapcore.AddSync(w))
	rebuild()
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s != nil {
		_ = s.Sync()
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(zapcore.DebugLevel, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(zapcore.InfoLevel, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(zapcore.WarnLevel, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(zapcore.ErrorLevel, msg, extended...)
}

func logWithLevel(lvl zapcore.Level, msg string, kv ...any) {
	initLogger()
	if !level.Enabled(lvl) {
		return
	}

	mu.RLock()
	s := sugar
	mu.RUnlock()

	kv = evenPairs(kv)
	switch lvl {
	case zapcore.DebugLevel:
		s.Debugw(msg, kv...)
	case zapcore.WarnLevel:
		s.Warnw(msg, kv...)
	case zapcore.ErrorLevel:
		s.Errorw(msg, kv...)
	default:
		s.Infow(msg, kv...)
	}
}

// evenPairs drops a trailing key without value and any non-string keys,
// so a sloppy call site never turns into a zap DPanic.
func evenPairs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}
