// Package influx ships poll and status measurements to InfluxDB, falling back
// to a gzip line-protocol file when the server cannot be reached.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/roadrunner-sim/viewer/internal/config"
	"github.com/roadrunner-sim/viewer/internal/model"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

// Measurement names.
const (
	EntityMeasurement = "entity_state"
	PollMeasurement   = "viewer_poll"
	StatusMeasurement = "viewer_status"
)

const retentionSeconds = 60 * 60 * 24 * 30

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	cfg    config.InfluxConfig
	logger zerolog.Logger

	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	valid  bool

	mu         sync.Mutex
	backupFile *os.File
	backup     *gzip.Writer
}

// NewManager creates a manager. Call Connect before writing.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: log}
}

// URL returns the server address built from the configuration.
func (m *Manager) URL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Connect pings the server. When it is healthy the org and bucket are
// created if missing; otherwise points go to the backup file.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}

	m.client = influxdb2.NewClientWithOptions(
		m.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.logger.Warn().Err(err).Str("backupPath", m.cfg.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.valid = true
	m.logger.Info().Str("url", m.URL()).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup != nil {
		return nil
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("creating bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

func (m *Manager) createWriter() {
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())
}

// Valid reports whether points go to the server rather than the backup file.
func (m *Manager) Valid() bool {
	return m.valid
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	// PointToLineProtocol already terminates the line.
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := m.backup.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// RecordPage writes one point per entity in the page plus one for the poll itself.
func (m *Manager) RecordPage(_ context.Context, page core.Page, took time.Duration) error {
	var errs []error
	for _, e := range page.Items {
		if err := m.WritePoint(EntityPoint(e)); err != nil {
			errs = append(errs, err)
		}
	}
	poll := influxdb2_write.NewPointWithMeasurement(PollMeasurement).
		AddField("page", page.Number).
		AddField("total_pages", page.TotalPages).
		AddField("items", len(page.Items)).
		AddField("took_ms", float64(took.Microseconds())/1000).
		SetTime(time.Now())
	if err := m.WritePoint(poll); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RecordStatus writes one status sample.
func (m *Manager) RecordStatus(_ context.Context, rec model.StatusRecord) error {
	p := influxdb2_write.NewPointWithMeasurement(StatusMeasurement).
		AddTag("session", rec.SessionID).
		AddTag("mode", rec.Mode).
		AddField("entities", rec.Entities).
		AddField("active", rec.Active).
		AddField("display_entries", rec.DisplayEntries).
		AddField("page_index", rec.PageIndex).
		AddField("total_pages", rec.TotalPages).
		AddField("loaded", rec.Loaded).
		SetTime(rec.Time)
	return m.WritePoint(p)
}

// EntityPoint converts a snapshot into an entity_state point stamped with its last update.
func EntityPoint(e core.EntityState) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(EntityMeasurement).
		AddTag("id", e.ID).
		AddTag("host", e.HostName).
		AddTag("color", e.ColorCode).
		AddField("lat", e.Position.Lat).
		AddField("lon", e.Position.Lon).
		AddField("speed", e.MetersPerSecond).
		AddField("bearing", e.DegBearing).
		AddField("exec_ns", e.NsLastExec).
		AddField("limited", e.PositionLimited).
		SetTime(e.LastUpdate())
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return nil
	}
	err := errors.Join(m.backup.Close(), m.backupFile.Close())
	m.backup, m.backupFile = nil, nil
	return err
}
