package search

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ResultLog appends accepted candidates of one round as JSON lines.
// The zero value and a nil *ResultLog discard everything.
type ResultLog struct {
	path   string
	file   *os.File
	logger *zap.Logger
}

// OpenResultLog creates <dir>/search-<roundStart>.jsonl. An empty dir disables the log.
func OpenResultLog(dir string, roundStart int64) (*ResultLog, error) {
	if dir == "" {
		return &ResultLog{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating result log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("search-%d.jsonl", roundStart))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening result log: %w", err)
	}
	encoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "time",
		LineEnding:  zapcore.DefaultLineEnding,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeTime:  zapcore.EpochMillisTimeEncoder,
	})
	core := zapcore.NewCore(encoder, zapcore.AddSync(file), zapcore.DebugLevel)
	return &ResultLog{path: path, file: file, logger: zap.New(core)}, nil
}

func (l *ResultLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes one {capacity, parasitic, sinceEmpty, sinceFull, time} line.
func (l *ResultLog) Append(c Candidate) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("",
		zap.Int("capacity", c.CapacityWh),
		zap.Int("parasitic", c.ParasiticConsumptionW),
		zap.Float64("sinceEmpty", c.SOCSinceEmpty),
		zap.Float64("sinceFull", c.SOCSinceFull),
	)
}

func (l *ResultLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.logger.Sync()
	err := l.file.Close()
	l.file = nil
	l.logger = nil
	return err
}
