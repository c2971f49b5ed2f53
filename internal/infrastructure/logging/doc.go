// Package logging provides structured logging using uber/zap.
//
// Two output modes are supported:
//   - Production: JSON lines for machine parsing
//   - Development: coloured console output
//
// Template code can log through console.log/info/warn/error; ConsoleSink maps
// those calls onto zap levels.
//
//	logger := logging.NewDefault()
//	logger.Info("server starting", zap.String("port", "8000"))
package logging
