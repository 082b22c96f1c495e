package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/pipeline"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/results"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrUnknownProduct means no record with the requested id exists in
// the merged record set.
var ErrUnknownProduct = errors.New("unknown product")

// RunStore persists finished runs and their records.
type RunStore interface {
	SaveRun(ctx context.Context, run *storage.Run) error
	SaveRecords(ctx context.Context, records []*models.ProductRecord) error
	ListRecords(ctx context.Context, limit int) ([]*models.ProductRecord, error)
}

// Job is one queued scrape request.
type Job struct {
	ID         string            `json:"id"`
	Query      string            `json:"query"`
	MaxPages   int               `json:"max_pages"`
	Status     Status            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Summary    *pipeline.Summary `json:"summary,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Manager queues scrape jobs and runs them one at a time against the
// pipeline. Jobs run sequentially on purpose: the target site sees one
// crawl at a time, parallelism lives inside the pipeline's worker
// pool. The merged record set across all completed jobs backs the
// dashboard endpoints.
type Manager struct {
	pipeline *pipeline.Pipeline
	store    RunStore
	logger   *zap.Logger

	mu      sync.RWMutex
	jobs    map[string]*Job
	order   []string
	results *results.ResultSet

	queue chan string
}

func NewManager(pl *pipeline.Pipeline, store RunStore, logger *zap.Logger) *Manager {
	return &Manager{
		pipeline: pl,
		store:    store,
		logger:   logger,
		jobs:     make(map[string]*Job),
		results:  results.New(),
		queue:    make(chan string, 64),
	}
}

// Submit queues a scrape job and returns it in pending state.
func (m *Manager) Submit(query string, maxPages int) (*Job, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if maxPages < 1 {
		return nil, fmt.Errorf("max_pages must be at least 1")
	}

	job := &Job{
		ID:        uuid.NewString(),
		Query:     query,
		MaxPages:  maxPages,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	m.mu.Unlock()

	select {
	case m.queue <- job.ID:
	default:
		m.mu.Lock()
		job.Status = StatusFailed
		job.Error = "job queue is full"
		m.mu.Unlock()
		return nil, fmt.Errorf("job queue is full")
	}

	m.logger.Info("job queued", zap.String("id", job.ID), zap.String("query", query))
	return snapshot(job), nil
}

// Get returns a copy of the job with the given id.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return snapshot(job), true
}

// List returns copies of all jobs in submission order.
func (m *Manager) List() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Job, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, snapshot(m.jobs[id]))
	}
	return out
}

// Records returns the canonical record set merged across all completed
// jobs, in first-seen order.
func (m *Manager) Records() []*models.ProductRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.results.Records()
}

// ProductDetail fetches and parses the detail page of the record with
// the given id. The record must already exist in the merged set.
func (m *Manager) ProductDetail(ctx context.Context, id string) (*models.ProductDetail, error) {
	m.mu.RLock()
	rec, ok := m.results.Get(id)
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return m.pipeline.FetchDetail(ctx, rec.URL)
}

// Hydrate seeds the merged record set from storage so the dashboard
// shows previously persisted records after a restart. A manager
// without a store hydrates to the empty set.
func (m *Manager) Hydrate(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	records, err := m.store.ListRecords(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to load persisted records: %w", err)
	}

	m.mu.Lock()
	for _, rec := range records {
		m.results.Merge(rec)
	}
	m.mu.Unlock()

	m.logger.Info("record set hydrated", zap.Int("records", len(records)))
	return nil
}

// StartWorker processes queued jobs until ctx is cancelled.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("job worker stopping")
			return
		case id := <-m.queue:
			m.runJob(ctx, id)
		}
	}
}

func (m *Manager) runJob(ctx context.Context, id string) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	job.Status = StatusRunning
	query, maxPages := job.Query, job.MaxPages
	m.mu.Unlock()

	m.logger.Info("processing job", zap.String("id", id), zap.String("query", query))

	rs, summary, err := m.pipeline.Run(ctx, query, maxPages)

	now := time.Now().UTC()
	m.mu.Lock()
	job.FinishedAt = &now
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		m.mu.Unlock()
		m.logger.Error("job failed", zap.String("id", id), zap.Error(err))
		return
	}
	job.Status = StatusCompleted
	job.Summary = summary
	for _, rec := range rs.Records() {
		m.results.Merge(rec)
	}
	m.mu.Unlock()

	m.persist(ctx, id, summary, rs.Records())
	m.logger.Info("job completed", zap.String("id", id), zap.Int("records", summary.RecordCount))
}

func (m *Manager) persist(ctx context.Context, id string, summary *pipeline.Summary, records []*models.ProductRecord) {
	if m.store == nil {
		return
	}

	run := &storage.Run{
		ID:              id,
		Query:           summary.Query,
		PagesFetched:    summary.PagesFetched,
		PagesFailed:     summary.PagesFailed,
		ProductsParsed:  summary.ProductsParsed,
		ProductsDropped: summary.ProductsDropped,
		RecordCount:     summary.RecordCount,
		Blocked:         summary.Blocked,
		StartedAt:       summary.StartedAt,
		FinishedAt:      summary.FinishedAt,
	}
	if err := m.store.SaveRun(ctx, run); err != nil {
		m.logger.Error("failed to save run", zap.String("id", id), zap.Error(err))
	}
	if err := m.store.SaveRecords(ctx, records); err != nil {
		m.logger.Error("failed to save records", zap.String("id", id), zap.Error(err))
	}
}

func snapshot(job *Job) *Job {
	copy := *job
	return &copy
}
