package permissionset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"twol-crm/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Janitor periodically removes private sets that no seat references.
type Janitor struct {
	service  PermissionSetService
	schedule string
	grace    time.Duration
	logger   *zap.Logger

	scheduler *cron.Cron
	running   sync.Mutex
}

func NewJanitor(lc fx.Lifecycle, service PermissionSetService, cfg *config.Config, logger *zap.Logger) (*Janitor, error) {
	if _, err := cron.ParseStandard(cfg.OrphanSweepSchedule); err != nil {
		return nil, fmt.Errorf("invalid orphan sweep schedule: %w", err)
	}

	j := &Janitor{
		service:  service,
		schedule: cfg.OrphanSweepSchedule,
		grace:    cfg.OrphanGracePeriod,
		logger:   logger.Named("janitor"),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return j.Start()
		},
		OnStop: func(ctx context.Context) error {
			j.Stop()
			return nil
		},
	})
	return j, nil
}

func (j *Janitor) Start() error {
	j.scheduler = cron.New()
	if _, err := j.scheduler.AddFunc(j.schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return err
	}
	j.scheduler.Start()
	j.logger.Info("orphan sweeper scheduled", zap.String("schedule", j.schedule))
	return nil
}

func (j *Janitor) Stop() {
	if j.scheduler != nil {
		ctx := j.scheduler.Stop()
		<-ctx.Done()
	}
}

// RunOnce sweeps once. Overlapping runs are skipped.
func (j *Janitor) RunOnce(ctx context.Context) int {
	if !j.running.TryLock() {
		j.logger.Debug("previous sweep still running, skipping")
		return 0
	}
	defer j.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	removed, err := j.service.SweepOrphans(ctx, j.grace)
	if err != nil {
		j.logger.Error("orphan sweep failed", zap.Int("removed", removed), zap.Error(err))
		return removed
	}
	if removed > 0 {
		j.logger.Info("orphan sweep finished", zap.Int("removed", removed))
	}
	return removed
}
