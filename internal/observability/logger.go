package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{
		logger: logger,
	}
}

// WithChunk adds chunk coordinate context to logger.
func (l *Logger) WithChunk(coord string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("chunk", coord).Logger(),
	}
}

// WithConn adds connection id context to logger.
func (l *Logger) WithConn(connID string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("conn_id", connID).Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// ChunkLoaded logs a chunk being loaded into a live Manager.
func (l *Logger) ChunkLoaded(coord string, fromBackend bool) {
	l.logger.Debug().
		Str("chunk", coord).
		Bool("from_backend", fromBackend).
		Msg("chunk loaded")
}

// ChunkSaved logs a chunk persist.
func (l *Logger) ChunkSaved(coord string, byteSize int, duration time.Duration) {
	l.logger.Debug().
		Str("chunk", coord).
		Int("byte_size", byteSize).
		Float64("duration_seconds", duration.Seconds()).
		Msg("chunk saved")
}

// ChunkIdleTimeout logs a Manager tearing itself down from idleness.
func (l *Logger) ChunkIdleTimeout(coord string, idleFor time.Duration) {
	l.logger.Info().
		Str("chunk", coord).
		Float64("idle_seconds", idleFor.Seconds()).
		Msg("chunk manager idle timeout")
}

// AdmissionRefused logs the Board Manager refusing to admit a new chunk.
func (l *Logger) AdmissionRefused(coord string, liveChunks, maxLiveChunks int) {
	l.logger.Warn().
		Str("chunk", coord).
		Int("live_chunks", liveChunks).
		Int("max_live_chunks", maxLiveChunks).
		Msg("chunk admission refused")
}

// ConnectionUpgraded logs a websocket upgrade succeeding.
func (l *Logger) ConnectionUpgraded(remoteAddr string, connID string, coord string) {
	l.logger.Info().
		Str("remote_addr", remoteAddr).
		Str("conn_id", connID).
		Str("chunk", coord).
		Msg("connection upgraded")
}

// ConnectionClosed logs a session ending.
func (l *Logger) ConnectionClosed(connID string, reason string) {
	l.logger.Info().
		Str("conn_id", connID).
		Str("reason", reason).
		Msg("connection closed")
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
