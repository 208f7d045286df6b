package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/observability/metrics"
)

// Stats is a point-in-time view of leave activity
type Stats struct {
	Pending     int
	UsersAway   int
	RefreshedAt time.Time
}

// StatsWorker periodically publishes leave activity gauges
type StatsWorker struct {
	leaves   domain.LeaveRequestRepository
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
}

// NewStatsWorker creates a new stats worker
func NewStatsWorker(leaves domain.LeaveRequestRepository, clk clock.Clock, logger *slog.Logger, interval time.Duration) *StatsWorker {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatsWorker{leaves: leaves, clock: clk, logger: logger, interval: interval}
}

// Start refreshes immediately and then on every interval until ctx is done
func (w *StatsWorker) Start(ctx context.Context) {
	w.logger.Info("stats worker started", slog.Duration("interval", w.interval))

	for {
		if _, err := w.Refresh(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("failed to refresh leave stats", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			w.logger.Info("stats worker stopped")
			return
		case <-w.clock.After(w.interval):
		}
	}
}

// Refresh recomputes the gauges from the store
func (w *StatsWorker) Refresh(ctx context.Context) (Stats, error) {
	now := w.clock.Now().UTC()
	today := domain.Truncate(now)

	pending, err := w.leaves.List(ctx, domain.LeaveFilter{Statuses: []domain.LeaveStatus{domain.StatusPending}})
	if err != nil {
		return Stats{}, err
	}

	// a request covering today started on or before it
	approved, err := w.leaves.List(ctx, domain.LeaveFilter{
		Statuses: []domain.LeaveStatus{domain.StatusApproved},
		StartTo:  today,
	})
	if err != nil {
		return Stats{}, err
	}
	away := map[int64]struct{}{}
	for _, lr := range approved {
		if lr.Overlaps(today, today) {
			away[lr.RequesterID] = struct{}{}
		}
	}

	stats := Stats{Pending: len(pending), UsersAway: len(away), RefreshedAt: now}
	metrics.SetPendingRequests(stats.Pending)
	metrics.SetUsersOnLeave(stats.UsersAway)
	w.logger.Debug("leave stats refreshed", slog.Int("pending", stats.Pending), slog.Int("users_away", stats.UsersAway))
	return stats, nil
}
