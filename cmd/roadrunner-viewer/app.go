package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/roadrunner-sim/viewer/internal/api"
	"github.com/roadrunner-sim/viewer/internal/config"
	"github.com/roadrunner-sim/viewer/internal/dispatcher"
	"github.com/roadrunner-sim/viewer/internal/geo"
	"github.com/roadrunner-sim/viewer/internal/influx"
	"github.com/roadrunner-sim/viewer/internal/logging"
	intOtel "github.com/roadrunner-sim/viewer/internal/otel"
	"github.com/roadrunner-sim/viewer/internal/render"
	wsrender "github.com/roadrunner-sim/viewer/internal/render/websocket"
	"github.com/roadrunner-sim/viewer/internal/session"
	"github.com/roadrunner-sim/viewer/internal/storage"
	"github.com/roadrunner-sim/viewer/internal/store"
	"github.com/roadrunner-sim/viewer/pkg/core"
	"github.com/roadrunner-sim/viewer/pkg/streaming"
)

// 16:9 against the configured viewport height.
const viewportAspect = 16.0 / 9.0

// app holds everything a command needs. Management commands only use the
// logging stack and the client; openViewer adds the rest.
type app struct {
	started time.Time
	session *session.Context // nil for management commands

	slog    *logging.SlogManager
	logger  *slog.Logger
	zlog    zerolog.Logger
	logFile *os.File
	otel    *intOtel.Provider

	client *api.Client

	live     *store.LiveEntityStore
	display  *store.DisplayStateStore
	backend  storage.Backend
	routes   *storage.CachedRoutes
	influx   *influx.Manager
	renderer render.Renderer
	ws       *wsrender.Renderer

	// current UI event router; swapped when the view changes
	dispatcher atomic.Pointer[dispatcher.Dispatcher]

	closers []func() error
}

func newApp(g *Globals, sess *session.Context) (*app, error) {
	a := &app{started: time.Now(), session: sess}

	a.slog = logging.NewSlogManager()
	a.slog.Setup(nil, "info", nil)
	a.logger = a.slog.Logger()

	err := config.Load(g.ConfigDir)
	if err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Info("Loaded config", "dir", g.ConfigDir)
	}
	loaded := err == nil

	if err := a.setupLogging(); err != nil {
		return nil, err
	}

	apiCfg := config.GetAPIConfig()
	var opts []api.Option
	if apiCfg.Timeout > 0 {
		opts = append(opts, api.WithTimeout(apiCfg.Timeout))
	}
	a.client = api.New(apiCfg.BaseURL, apiCfg.Token, opts...)
	a.logger.Debug("API client ready", "baseUrl", apiCfg.BaseURL)

	if loaded && sess != nil {
		a.watchToken(apiCfg.Token)
	}
	return a, nil
}

// watchToken hands a rewritten api.token to the running client.
func (a *app) watchToken(current string) {
	logger := a.logger
	config.Watch(func() {
		token := config.GetAPIConfig().Token
		if token == current {
			return
		}
		current = token
		a.client.SetToken(token)
		logger.Info("API token refreshed")
	})
}

// setupLogging moves logging from stdout to the session log file, with the
// optional GELF and OTel sinks.
func (a *app) setupLogging() error {
	logsDir := config.GetString("logsDir")
	level := config.GetString("logLevel")

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}
	path := logging.LogFilePath(logsDir, appName, a.started)
	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".old")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	a.logFile = f
	a.closers = append(a.closers, f.Close)
	a.logger.Info("Begin logging in logs directory", "path", path)

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		a.otel, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      f,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			a.logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint, "metrics", a.otel.MetricsEnabled())
			a.closers = append(a.closers, a.shutdownOTel)
		}
	}

	var opts []logging.SetupOption
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			a.logger.Error("Failed to connect to Graylog", "error", err, "address", gl.Address)
		} else {
			opts = append(opts, logging.WithGraylog(w))
			a.closers = append(a.closers, w.Close)
		}
	}
	if a.session != nil {
		opts = append(opts, logging.WithContext(a.session.LogAttrs))
	}

	var provider *sdklog.LoggerProvider
	if a.otel != nil {
		provider = a.otel.LoggerProvider()
	}
	a.slog.Setup(f, level, provider, opts...)
	a.logger = a.slog.Logger()
	a.logger.Info("Logging to file", "path", path, "version", Version, "buildDate", BuildDate)

	a.zlog = zerolog.New(f).Level(zerologLevel(level)).With().
		Timestamp().
		Str("service", logging.ServiceName).
		Logger()
	return nil
}

func (a *app) shutdownOTel() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.otel.Shutdown(ctx)
}

func zerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// openViewer builds the stores, the session recorder, the optional InfluxDB
// writer and the renderer.
func (a *app) openViewer(ctx context.Context) error {
	if a.session == nil {
		return errors.New("viewer needs a session")
	}
	a.live = store.NewLiveEntityStore()
	a.display = store.NewDisplayStateStore()

	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, a.session.ID, a.logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.backend = backend
	a.closers = append(a.closers, backend.Close)
	a.routes = storage.NewCachedRoutes(a.client, backend, a.logger)
	a.logger.Info("Storage backend initialized", "type", storageCfg.Type)

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		m := influx.NewManager(influxCfg, a.zlog)
		if err := m.Connect(ctx); err != nil {
			a.logger.Warn("InfluxDB unavailable", "error", err, "url", m.URL())
		} else {
			a.influx = m
			a.closers = append(a.closers, m.Close)
		}
	}

	return a.openRenderer()
}

func (a *app) openRenderer() error {
	renderCfg := config.GetRenderConfig()
	camCfg := config.GetCameraConfig()
	crisscross := api.DefaultCrissCross()
	vp := geo.Viewport{
		Center: core.GeoPoint{Lat: crisscross.DegLatitude, Lon: crisscross.DegLongitude},
		Zoom:   config.GetDisplayConfig().InitialZoom,
		Width:  camCfg.ViewportHeight * viewportAspect,
		Height: camCfg.ViewportHeight,
	}

	if renderCfg.URL == "" {
		a.renderer = render.NewHeadless(vp, a.logger)
		a.logger.Info("No render.url set, rendering headless")
		return nil
	}

	a.ws = wsrender.New(wsrender.Config{
		URL:      renderCfg.URL,
		Secret:   renderCfg.Secret,
		Viewport: vp,
	}, a.logger, a.onEvent)
	if err := a.ws.Init(); err != nil {
		return fmt.Errorf("failed to connect to map: %w", err)
	}
	a.renderer = a.ws
	a.closers = append(a.closers, a.ws.Close)
	a.logger.Info("Connected to map", "url", renderCfg.URL)
	return nil
}

// onEvent routes a map UI event to the current view.
func (a *app) onEvent(env streaming.Envelope) {
	d := a.dispatcher.Load()
	if d == nil {
		return
	}
	if _, err := d.Dispatch(dispatcher.FromEnvelope(env)); err != nil {
		a.logger.Debug("UI event not handled", "type", env.Type, "error", err)
	}
}

// newDispatcher returns a fresh router and makes it current.
func (a *app) newDispatcher() (*dispatcher.Dispatcher, error) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	if old := a.dispatcher.Swap(d); old != nil {
		old.Close()
	}
	return d, nil
}

// startSession announces the current session to the map.
func (a *app) startSession() {
	if a.ws == nil {
		return
	}
	err := a.ws.StartSession(streaming.SessionStartPayload{
		SessionID: a.session.ID(),
		Mode:      string(a.session.Mode()),
		EntityID:  a.session.EntityID(),
	})
	if err != nil {
		a.logger.Warn("Map did not acknowledge session start", "error", err)
	}
}

func (a *app) endSession() {
	if a.ws == nil {
		return
	}
	if err := a.ws.EndSession(); err != nil {
		a.logger.Warn("Failed to end map session", "error", err)
	}
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() error {
	if d := a.dispatcher.Swap(nil); d != nil {
		d.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
