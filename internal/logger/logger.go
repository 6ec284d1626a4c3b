// Package logger holds the process-wide structured logger.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names, so the same thing is always logged under the same key.
const (
	FieldRoomID     = "room_id"
	FieldUserID     = "user_id"
	FieldClientID   = "client_id"
	FieldEvent      = "event"
	FieldLanguage   = "language"
	FieldArtifact   = "artifact"
	FieldKind       = "kind"
	FieldExitCode   = "exit_code"
	FieldDurationMS = "duration_ms"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldSize       = "size"
	FieldError      = "error"
	FieldAddress    = "address"
)

// Logger is the global logger. It is a no-op until Initialize is called so
// packages can log from tests and init code without nil checks.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize replaces the global logger. jsonOutput selects zap's production
// JSON encoder; otherwise a console encoder is written to stdout.
func Initialize(jsonOutput bool, level string) error {
	lvl := parseLevel(level)

	var zl *zap.Logger
	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		var err error
		zl, err = cfg.Build()
		if err != nil {
			return err
		}
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zl = zap.New(
			zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stdout), lvl),
		)
	}

	Logger = zl.Sugar()
	return nil
}

// ComponentLogger returns a named child of the global logger. Call it when
// the component is constructed, after Initialize has run.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// Sync flushes buffered entries. Errors from syncing stdout are ignored.
func Sync() {
	_ = Logger.Sync()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
