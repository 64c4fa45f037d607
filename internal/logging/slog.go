package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope used for the OTel log bridge.
const ServiceName = "roadrunner-viewer"

// Swapped in tests to capture console output.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager builds the viewer's slog.Logger. Setup may be called again to
// move logging to a new destination; the level survives through SetLevel.
type SlogManager struct {
	level    slog.LevelVar
	logger   *slog.Logger
	provider *sdklog.LoggerProvider
}

// NewSlogManager creates a manager. Logger returns slog.Default until Setup.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// SetupOption adds an optional sink or decoration to Setup.
type SetupOption func(*setupConfig)

type setupConfig struct {
	graylog io.Writer
	context ContextProvider
}

// WithGraylog also writes every record to w, usually a GELF writer.
func WithGraylog(w io.Writer) SetupOption {
	return func(c *setupConfig) { c.graylog = w }
}

// WithContext injects the provider's attributes into every record.
func WithContext(p ContextProvider) SetupOption {
	return func(c *setupConfig) { c.context = p }
}

// parseLevel maps a config level name to a slog.Level. Unknown names are info.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// utcRFC3339 renders record times as UTC RFC3339.
func utcRFC3339(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup builds the handler chain: text to file (stdout when file is nil),
// text to the Graylog writer, and the OTel bridge when provider is non-nil.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...SetupOption) {
	var cfg setupConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	m.level.Set(parseLevel(level))
	m.provider = provider
	textOpts := &slog.HandlerOptions{Level: &m.level, ReplaceAttr: utcRFC3339}

	if file == nil {
		file = osStdout
	}
	sinks := []slog.Handler{slog.NewTextHandler(file, textOpts)}
	if cfg.graylog != nil {
		sinks = append(sinks, slog.NewTextHandler(cfg.graylog, textOpts))
	}
	if provider != nil {
		sinks = append(sinks, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	var handler slog.Handler = NewMultiHandler(sinks...)
	if cfg.context != nil {
		handler = NewContextHandler(handler, cfg.context)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", m.level.Level().String())
}

// SetLevel changes the minimum level of the text sinks.
func (m *SlogManager) SetLevel(level string) {
	m.level.Set(parseLevel(level))
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush exports buffered OTel records. It is a no-op without a provider.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
