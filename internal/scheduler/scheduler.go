package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/clock"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobExpireStaleOrders = "expire_stale_orders"

	leaderLockKey = "storefront:scheduler:leader"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	OrderSvc orderdomain.Service
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   Config                      `optional:"true"`
	Locker   *ratelimit.Locker           `optional:"true"`
	Metrics  *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	orderSvc orderdomain.Service
	locker   *ratelimit.Locker
	metrics  *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.OrderSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		orderSvc: p.OrderSvc,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout: the next tick picks up where this one
	// stopped.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobExpireStaleOrders, s.isJobEnabled(JobExpireStaleOrders), func(ctx context.Context) error {
			return s.runJob(ctx, JobExpireStaleOrders, s.cfg.BatchSize, s.cfg.JobTimeout, s.ExpireStaleOrdersJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		if runLag := s.clock.Now().Sub(nextRun); runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ExpireStaleOrdersJob reconciles PENDING orders older than MinAge: paid
// sessions settle, expired ones fail, and orders past the pending window
// expire. With Redis configured only one replica sweeps per tick.
func (s *Scheduler) ExpireStaleOrdersJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobExpireStaleOrders, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	release, acquired, err := s.acquireLeader(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		s.metrics.IncBatchDeferred(JobExpireStaleOrders, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Debug("sweep skipped; another replica holds the leader lock")
		return nil
	}
	defer release()

	result, err := s.orderSvc.SweepPending(ctx, orderdomain.SweepRequest{
		MinAge: s.cfg.MinAge,
		Limit:  s.cfg.BatchSize,
	})
	run.AddProcessed(result.Scanned)
	s.metrics.AddBatchProcessed(JobExpireStaleOrders, "paid", result.Paid)
	s.metrics.AddBatchProcessed(JobExpireStaleOrders, "failed", result.Failed)
	s.metrics.AddBatchProcessed(JobExpireStaleOrders, "pending", result.Pending)
	s.metrics.AddBatchProcessed(JobExpireStaleOrders, "error", result.Errors)
	for i := 0; i < result.Errors; i++ {
		run.IncError()
	}
	if err != nil {
		s.logSchedulerError(ctx, run, "sweep.failed", err)
		return err
	}
	return nil
}

// acquireLeader takes the Redis leader lock. Without a locker every replica
// sweeps; the order transitions are compare-and-set so overlap is harmless.
func (s *Scheduler) acquireLeader(ctx context.Context) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}
	token, ok, err := s.locker.TryLock(ctx, leaderLockKey, s.cfg.LockTTL)
	if err != nil {
		s.logger(ctx).Warn("leader lock unavailable; sweeping without it", zap.Error(err))
		return func() {}, true, nil
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, leaderLockKey, token); err != nil {
			s.logger(ctx).Warn("leader lock release failed", zap.Error(err))
		}
	}, true, nil
}
