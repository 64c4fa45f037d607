// Package config loads the viewer configuration through viper and exposes typed views of it.
package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "roadrunner_viewer.cfg.json"

// APIConfig holds telemetry source settings.
type APIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration // zero means no per-request timeout
}

// PollConfig holds entity-list poller settings.
type PollConfig struct {
	Interval        time.Duration
	PageSize        int
	EvictionTimeout time.Duration
}

// DisplayConfig holds overview display settings.
type DisplayConfig struct {
	Eviction    string
	MinSize     float64
	MaxSize     float64
	MinZoom     float64
	MaxZoom     float64
	InitialZoom float64
	HitDistance float64
}

// CameraConfig holds ride-along chase camera settings.
type CameraConfig struct {
	Interval        time.Duration
	BaseRange       float64
	ReferenceHeight float64
	ViewportHeight  float64
}

// OffsetConfig holds the press-and-hold bearing offset settings.
type OffsetConfig struct {
	Step     float64
	Interval time.Duration
}

// StorageConfig holds session recording settings.
type StorageConfig struct {
	Type          string
	TrailLength   int
	FlushInterval time.Duration
}

// RenderConfig holds the browser map connection.
type RenderConfig struct {
	URL    string
	Secret string
}

// InfluxConfig holds InfluxDB settings.
type InfluxConfig struct {
	Enabled    bool
	Host       string
	Port       string
	Protocol   string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Endpoint       string
	Insecure       bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// Watch re-reads the config file whenever it is written and then calls
// onChange from the watcher goroutine. Call it only after Load succeeded.
func Watch(onChange func()) {
	viper.OnConfigChange(func(fsnotify.Event) { onChange() })
	viper.WatchConfig()
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./viewerlogs")

	viper.SetDefault("api.baseUrl", "http://localhost:8080")
	viper.SetDefault("api.token", "")
	viper.SetDefault("api.timeout", "0s")

	viper.SetDefault("poll.interval", "100ms")
	viper.SetDefault("poll.pageSize", 100)
	viper.SetDefault("poll.evictionTimeout", "30s")

	viper.SetDefault("display.eviction", "retain")
	viper.SetDefault("display.minSize", 5.0)
	viper.SetDefault("display.maxSize", 30.0)
	viper.SetDefault("display.minZoom", 12.0)
	viper.SetDefault("display.maxZoom", 22.0)
	viper.SetDefault("display.initialZoom", 10.0)
	viper.SetDefault("display.hitDistance", 100.0)

	viper.SetDefault("camera.interval", "100ms")
	viper.SetDefault("camera.baseRange", 25.0)
	viper.SetDefault("camera.referenceHeight", 1080.0)
	viper.SetDefault("camera.viewportHeight", 1080.0)

	viper.SetDefault("offset.step", 5.0)
	viper.SetDefault("offset.interval", "50ms")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.trailLength", 50)
	viper.SetDefault("storage.flushInterval", "1s")

	viper.SetDefault("render.url", "")
	viper.SetDefault("render.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "roadrunner")
	viper.SetDefault("influx.bucket", "viewer_performance")
	viper.SetDefault("influx.backupPath", "./viewerlogs/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "roadrunner-viewer")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "1s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

func GetAPIConfig() APIConfig {
	return APIConfig{
		BaseURL: viper.GetString("api.baseUrl"),
		Token:   viper.GetString("api.token"),
		Timeout: viper.GetDuration("api.timeout"),
	}
}

func GetPollConfig() PollConfig {
	return PollConfig{
		Interval:        viper.GetDuration("poll.interval"),
		PageSize:        viper.GetInt("poll.pageSize"),
		EvictionTimeout: viper.GetDuration("poll.evictionTimeout"),
	}
}

func GetDisplayConfig() DisplayConfig {
	return DisplayConfig{
		Eviction:    viper.GetString("display.eviction"),
		MinSize:     viper.GetFloat64("display.minSize"),
		MaxSize:     viper.GetFloat64("display.maxSize"),
		MinZoom:     viper.GetFloat64("display.minZoom"),
		MaxZoom:     viper.GetFloat64("display.maxZoom"),
		InitialZoom: viper.GetFloat64("display.initialZoom"),
		HitDistance: viper.GetFloat64("display.hitDistance"),
	}
}

func GetCameraConfig() CameraConfig {
	return CameraConfig{
		Interval:        viper.GetDuration("camera.interval"),
		BaseRange:       viper.GetFloat64("camera.baseRange"),
		ReferenceHeight: viper.GetFloat64("camera.referenceHeight"),
		ViewportHeight:  viper.GetFloat64("camera.viewportHeight"),
	}
}

func GetOffsetConfig() OffsetConfig {
	return OffsetConfig{
		Step:     viper.GetFloat64("offset.step"),
		Interval: viper.GetDuration("offset.interval"),
	}
}

// GetStorageConfig returns the session recording configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		TrailLength:   viper.GetInt("storage.trailLength"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
	}
}

func GetRenderConfig() RenderConfig {
	return RenderConfig{
		URL:    viper.GetString("render.url"),
		Secret: viper.GetString("render.secret"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}
