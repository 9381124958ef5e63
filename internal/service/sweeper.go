package service

import (
	"context"
	"fmt"
	"time"

	"github.com/eventline/comms-engine/internal/queue"
	"github.com/eventline/comms-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = time.Minute
	defaultStaleAfter    = 5 * time.Minute
	defaultSweepLimit    = 50
)

// ReconciliationSweeper re-enqueues campaigns whose PENDING records have
// sat untouched past the staleness window. It is the safety net for lost
// dispatch jobs and worker crashes mid-pass.
type ReconciliationSweeper struct {
	records    repository.RecordRepository
	publisher  queue.Publisher
	logger     *zap.Logger
	interval   time.Duration
	staleAfter time.Duration
	limit      int
	now        func() time.Time
}

func NewReconciliationSweeper(
	records repository.RecordRepository,
	publisher queue.Publisher,
	interval time.Duration,
	staleAfter time.Duration,
	logger *zap.Logger,
) (*ReconciliationSweeper, error) {
	if records == nil {
		return nil, fmt.Errorf("record repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReconciliationSweeper{
		records:    records,
		publisher:  publisher,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
		limit:      defaultSweepLimit,
		now:        time.Now,
	}, nil
}

// Start runs the sweep loop until the context is cancelled.
func (s *ReconciliationSweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("reconciliation sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("staleAfter", s.staleAfter),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep pass failed", zap.Error(err))
			}
		}
	}
}

// Sweep re-enqueues one batch of campaigns with stale PENDING records.
func (s *ReconciliationSweeper) Sweep(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.staleAfter)

	campaignIDs, err := s.records.StalePendingCampaignIDs(ctx, cutoff, s.limit)
	if err != nil {
		return fmt.Errorf("failed to scan stale pending records: %w", err)
	}
	if len(campaignIDs) == 0 {
		return nil
	}

	s.logger.Info("re-enqueueing campaigns with stale pending records",
		zap.Int("campaigns", len(campaignIDs)),
	)

	for _, campaignID := range campaignIDs {
		job := queue.DispatchJob{CampaignID: campaignID}
		if err := s.publisher.Publish(ctx, queue.DispatchQueue, job); err != nil {
			// Keep going; the next sweep retries whatever failed here.
			s.logger.Error("failed to re-enqueue campaign",
				zap.String("campaignId", campaignID),
				zap.Error(err),
			)
		}
	}
	return nil
}
