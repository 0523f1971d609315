package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/presshost/presshost/internal/db"
	"github.com/presshost/presshost/internal/metrics"
	"github.com/presshost/presshost/internal/queue"
	"go.uber.org/zap"
)

// JobSource is the queue side the pool consumes from.
type JobSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.Job, error)
}

// SiteProvisioner runs one provisioning attempt for a site.
type SiteProvisioner interface {
	Run(ctx context.Context, site *db.Site) bool
}

// Pool consumes site jobs and applies them. Each job loads the site fresh
// from the registry; provisioning blocks its worker for the whole run.
type Pool struct {
	source      JobSource
	repo        *db.Repository
	provisioner SiteProvisioner
	metrics     *metrics.Collector
	logger      *zap.Logger
	count       int
	popTimeout  time.Duration
	wg          sync.WaitGroup
}

func NewPool(source JobSource, repo *db.Repository, provisioner SiteProvisioner, m *metrics.Collector, logger *zap.Logger, count int, popTimeout time.Duration) *Pool {
	return &Pool{
		source:      source,
		repo:        repo,
		provisioner: provisioner,
		metrics:     m,
		logger:      logger,
		count:       count,
		popTimeout:  popTimeout,
	}
}

// Start blocks until ctx is cancelled and all workers have drained.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("worker_count", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}

	<-ctx.Done()
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker stopped")
			return
		default:
		}

		job, err := p.source.Pop(ctx, p.popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				logger.Info("Worker stopped")
				return
			}
			logger.Error("Failed to pop job", zap.Error(err))
			continue
		}

		p.Process(ctx, job, logger)
	}
}

// Process applies one job. Exported for tests.
func (p *Pool) Process(ctx context.Context, job *queue.Job, logger *zap.Logger) {
	site, err := p.repo.GetSite(ctx, job.SiteID)
	if err != nil {
		if errors.Is(err, db.ErrSiteNotFound) {
			logger.Warn("Job references missing site",
				zap.String("job_id", job.ID),
				zap.Int64("site_id", job.SiteID),
			)
			return
		}
		logger.Error("Failed to load site", zap.Int64("site_id", job.SiteID), zap.Error(err))
		return
	}

	switch job.Operation {
	case queue.OpCreate:
		ok := p.provisioner.Run(ctx, site)
		p.metrics.RecordProvision(ok)

	case queue.OpDelete:
		// No compensating cleanup: the database, files and vhost created
		// during provisioning are left in place (known gap).
		if err := p.repo.TransitionSite(ctx, site.ID, site.Status, db.StatusDeleted); err != nil {
			if errors.Is(err, db.ErrIllegalTransition) {
				logger.Warn("Deletion rejected by lifecycle",
					zap.Int64("site_id", site.ID),
					zap.String("status", string(site.Status)),
				)
				return
			}
			logger.Error("Failed to delete site", zap.Int64("site_id", site.ID), zap.Error(err))
			return
		}
		p.metrics.RecordDeletion()
		logger.Info("Site deleted",
			zap.Int64("site_id", site.ID),
			zap.String("domain", site.Domain),
		)

	default:
		logger.Warn("Unknown job operation",
			zap.String("job_id", job.ID),
			zap.String("operation", string(job.Operation)),
		)
	}
}
