package consistency

import (
	"context"
	"time"

	"github.com/mystery-events/voucherd/internal/settings"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	sweepLockKey = "voucherd:consistency:sweep"
)

// Sweeper periodically runs the repair scan over recent vouchers.
//
// When a Redis client is provided, a best-effort SET NX lock keeps multiple
// instances from sweeping at the same time; without Redis every instance
// sweeps, which is safe because repairs are idempotent, just redundant.
type Sweeper struct {
	repairer *Repairer
	rdb      *redis.Client
	store    *settings.Store
	interval time.Duration
	window   int
}

// NewSweeper constructs a Sweeper; interval <= 0 disables it.
func NewSweeper(repairer *Repairer, rdb *redis.Client, store *settings.Store, interval time.Duration, window int) *Sweeper {
	if repairer == nil || interval <= 0 {
		return nil
	}
	if store == nil {
		store = settings.NewStore()
	}
	return &Sweeper{repairer: repairer, rdb: rdb, store: store, interval: interval, window: window}
}

// Start launches the sweep loop in a background goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("consistency sweeper started (interval=%s window=%d)", s.interval, s.window)
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	if !s.acquireLock(ctx) {
		return
	}

	window := s.store.ScanWindow(s.window)
	report, errRepair := s.repairer.Repair(ctx, window)
	if errRepair != nil {
		log.Warnf("consistency sweep failed: %v", errRepair)
		return
	}
	if report.Fixed > 0 || report.Failed > 0 || report.Unrepairable > 0 {
		log.Infof("consistency sweep: checked=%d fixed=%d failed=%d unrepairable=%d",
			report.Checked, report.Fixed, report.Failed, report.Unrepairable)
	}
}

// acquireLock takes the sweep lock for one interval; errors fall back to sweeping.
func (s *Sweeper) acquireLock(ctx context.Context) bool {
	if s.rdb == nil {
		return true
	}
	ok, errLock := s.rdb.SetNX(ctx, sweepLockKey, "1", s.interval).Result()
	if errLock != nil {
		log.Warnf("consistency sweep lock unavailable: %v", errLock)
		return true
	}
	return ok
}
