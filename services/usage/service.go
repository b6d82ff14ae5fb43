// Package usage persists per-request consumption records out-of-band. Recording is
// best-effort: it never blocks a response and its failures never reach the client.
package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govconone/backend/models"
	"github.com/govconone/backend/repositories"
	"go.uber.org/zap"
)

// Config holds configuration for the Meter
type Config struct {
	BufferSize   int           // Size of the record buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Per-record persistence deadline
	// DemoTenantID marks non-billable traffic that is never persisted
	DemoTenantID uuid.UUID
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   10000,
		WorkerCount:  4,
		WriteTimeout: 5 * time.Second,
	}
}

// Meter captures usage records and persists them from background workers.
// Record is non-blocking; a full buffer drops the record with a warning.
type Meter struct {
	repo        repositories.UsageRepository
	logger      *zap.Logger
	records     chan *models.UsageLog
	cfg         Config
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// NewMeter creates a new usage meter
func NewMeter(repo repositories.UsageRepository, logger *zap.Logger, cfg Config) *Meter {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultConfig().WorkerCount
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Meter{
		repo:    repo,
		logger:  logger,
		records: make(chan *models.UsageLog, cfg.BufferSize),
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the background workers
func (m *Meter) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("usage meter already started")
	}

	for i := 0; i < m.cfg.WorkerCount; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	m.started = true
	m.logger.Info("started usage meter",
		zap.Int("worker_count", m.cfg.WorkerCount),
		zap.Int("buffer_size", m.cfg.BufferSize))
	return nil
}

// Stop drains pending records and stops the workers, bounded by timeout
func (m *Meter) Stop(timeout time.Duration) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return fmt.Errorf("usage meter not started")
	}
	m.started = false
	m.mu.Unlock()

	m.logger.Info("stopping usage meter", zap.Int("pending_records", len(m.records)))
	close(m.records)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("usage meter stopped gracefully")
		m.cancel()
		return nil
	case <-time.After(timeout):
		m.cancel()
		return fmt.Errorf("usage meter stop timeout after %v", timeout)
	}
}

// Record queues one usage record for persistence. Non-blocking: called after the
// response has been dispatched, it adds no latency to the request. Demo-tenant
// traffic is discarded so metering data stays billable-only.
func (m *Meter) Record(log *models.UsageLog) {
	if log.TenantID == m.cfg.DemoTenantID {
		return
	}

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		m.logger.Warn("usage meter not running, dropping record",
			zap.String("tenant_id", log.TenantID.String()))
		return
	}

	select {
	case m.records <- log:
	default:
		m.logger.Warn("usage record buffer full, dropping record",
			zap.String("tenant_id", log.TenantID.String()),
			zap.String("endpoint", log.Endpoint))
	}
}

// worker persists records until the channel is drained
func (m *Meter) worker(id int) {
	defer m.wg.Done()

	m.logger.Debug("usage worker started", zap.Int("worker_id", id))

	for record := range m.records {
		m.persist(record)
	}

	m.logger.Debug("usage worker stopped", zap.Int("worker_id", id))
}

// persist writes one record. Failures are logged and swallowed: metering must never
// surface to a client or crash the serving process.
func (m *Meter) persist(record *models.UsageLog) {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.WriteTimeout)
	defer cancel()

	if err := m.repo.Insert(ctx, record); err != nil {
		m.logger.Error("failed to persist usage record",
			zap.String("tenant_id", record.TenantID.String()),
			zap.String("user_id", record.UserID.String()),
			zap.String("endpoint", record.Endpoint),
			zap.Error(err))
		return
	}

	m.logger.Debug("usage record persisted",
		zap.String("tenant_id", record.TenantID.String()),
		zap.String("endpoint", record.Endpoint),
		zap.Int64("duration_ms", record.DurationMs))
}

// Pending returns the number of queued records (for readiness reporting and tests)
func (m *Meter) Pending() int {
	return len(m.records)
}
