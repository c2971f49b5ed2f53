package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every render log line.
const (
	KeyRenderID = "render_id"
	KeyFilename = "filename"
	KeySource   = "source"
)

// Logger wraps zap.Logger for the service.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	Service     string // added to every entry when set
	OutputPaths []string
}

// DefaultConfig returns production logger configuration: JSON at info.
func DefaultConfig() Config {
	return Config{Level: "info", Service: "sandrender"}
}

// DevelopmentConfig returns coloured console output at debug.
func DevelopmentConfig() Config {
	return Config{Level: "debug", Development: true, Service: "sandrender"}
}

// New builds a logger from cfg. Output goes to stdout unless OutputPaths
// says otherwise.
func New(cfg Config) (*Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.MessageKey = "message"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.Sampling = nil
	zapCfg.DisableStacktrace = true
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stdout"}
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}
	if cfg.Service != "" {
		zapCfg.InitialFields = map[string]interface{}{"service": cfg.Service}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// NewDefault creates a logger with default configuration, or a nop logger
// if that fails.
func NewDefault() *Logger {
	logger, err := New(DefaultConfig())
	if err != nil {
		return NewNop()
	}
	return logger
}

// NewDevelopment is NewDefault with DevelopmentConfig.
func NewDevelopment() *Logger {
	logger, err := New(DevelopmentConfig())
	if err != nil {
		return NewNop()
	}
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// ForRender scopes l to one template execution.
func ForRender(l *zap.Logger, renderID, filename string) *zap.Logger {
	return l.With(zap.String(KeyRenderID, renderID), zap.String(KeyFilename, filename))
}

// ConsoleSink returns a function that writes template console output to l.
// console.log maps to debug; unknown levels are logged at info.
func ConsoleSink(l *zap.Logger) func(level, message string) {
	l = l.With(zap.String(KeySource, "template"))
	return func(level, message string) {
		switch level {
		case "error":
			l.Error(message)
		case "warn":
			l.Warn(message)
		case "log", "debug":
			l.Debug(message)
		default:
			l.Info(message)
		}
	}
}
