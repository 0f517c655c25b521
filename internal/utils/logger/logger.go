package logger

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/labomba/deposit-settlement/internal/types/environments"
)

const (
	serviceName = "deposit-settlement"
	redacted    = "[redacted]"
)

// secretSuffixes mark field keys whose values never reach the log output.
var secretSuffixes = []string{"token", "secret", "password", "api_key", "service_key", "authorization"}

type Logger struct {
	wrappedLogger *zap.Logger
}

func New(env environments.Environment) *Logger {
	zapLogger, err := configFor(env).Build()
	if err != nil {
		panic(err)
	}

	return &Logger{
		wrappedLogger: zapLogger.With(
			zap.String("service", serviceName),
			zap.String("env", string(env)),
		),
	}
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]string) *Logger {
	return &Logger{wrappedLogger: l.wrappedLogger.With(toFields(fields)...)}
}

func (l *Logger) Debug(msg string, inputFields ...map[string]string) {
	l.write(zapcore.DebugLevel, msg, inputFields)
}

func (l *Logger) Info(msg string, inputFields ...map[string]string) {
	l.write(zapcore.InfoLevel, msg, inputFields)
}

func (l *Logger) Warn(msg string, inputFields ...map[string]string) {
	l.write(zapcore.WarnLevel, msg, inputFields)
}

func (l *Logger) Error(msg string, inputFields ...map[string]string) {
	l.write(zapcore.ErrorLevel, msg, inputFields)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, inputFields ...map[string]string) {
	l.write(zapcore.FatalLevel, msg, inputFields)
}

// Sync flushes buffered entries. Errors from syncing stdout are ignored.
func (l *Logger) Sync() {
	_ = l.wrappedLogger.Sync()
}

func (l *Logger) write(level zapcore.Level, msg string, inputFields []map[string]string) {
	ce := l.wrappedLogger.Check(level, msg)
	if ce == nil {
		return
	}
	var fields []zap.Field
	if len(inputFields) > 0 {
		fields = toFields(inputFields[0])
	}
	ce.Write(fields...)
}

// toFields converts a string map to zap fields in key order, masking secrets.
func toFields(strMap map[string]string) []zap.Field {
	keys := make([]string, 0, len(strMap))
	for k := range strMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		v := strMap[k]
		if isSecret(k) && v != "" {
			v = redacted
		}
		fields = append(fields, zap.String(k, v))
	}
	return fields
}

func isSecret(key string) bool {
	key = strings.ToLower(key)
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}
