// Package logging builds the process logger and the alert collector that
// mails error-level entries at the end of a run.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mkoziy/harvester/internal/config"
)

// New builds a logger writing to stderr and, when configured, to a file.
// Entries at error level and above are also teed into alerts when it is not
// nil. The returned func closes the log file.
func New(cfg config.Logging, alerts *Alerts) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging.level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console", "":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, nil, fmt.Errorf("logging.format must be console or json (got %q)", cfg.Format)
	}

	out := zapcore.Lock(os.Stderr)
	closer := func() {}
	if cfg.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = zapcore.NewMultiWriteSyncer(out, zapcore.AddSync(f))
		closer = func() { _ = f.Close() }
	}

	cores := []zapcore.Core{zapcore.NewCore(enc, out, level)}
	if alerts != nil {
		cores = append(cores, alerts.Core())
	}
	return zap.New(zapcore.NewTee(cores...)), closer, nil
}
