package service

import (
	"context"
	"fmt"

	"github.com/eventline/comms-engine/internal/observability"
	"github.com/eventline/comms-engine/internal/queue"
	"github.com/eventline/comms-engine/internal/repository"
	"go.uber.org/zap"
)

// RetryResult reports how many failed records a retry request requeued.
type RetryResult struct {
	Requeued int
}

// RetryCoordinator requeues a campaign's FAILED records and hands them to a
// dispatch pass scoped to exactly those records. Records already SENT are
// never touched, so a retry can only add deliveries, not repeat them.
type RetryCoordinator struct {
	campaigns repository.CampaignRepository
	records   repository.RecordRepository
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewRetryCoordinator(
	campaigns repository.CampaignRepository,
	records repository.RecordRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*RetryCoordinator, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if records == nil {
		return nil, fmt.Errorf("record repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryCoordinator{
		campaigns: campaigns,
		records:   records,
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (r *RetryCoordinator) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Retry flips the campaign's FAILED records back to PENDING and enqueues a
// dispatch job carrying their ids. With no failed records it is a no-op.
func (r *RetryCoordinator) Retry(ctx context.Context, eventID string, campaignID string) (*RetryResult, error) {
	campaign, err := campaignForEvent(ctx, r.campaigns, eventID, campaignID)
	if err != nil {
		return nil, err
	}

	ids, err := r.records.RequeueFailed(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to requeue failed records: %w", err)
	}
	if len(ids) == 0 {
		return &RetryResult{Requeued: 0}, nil
	}

	job := queue.DispatchJob{
		CampaignID: campaign.ID,
		RecordIDs:  ids,
	}
	if err := r.publisher.Publish(ctx, queue.DispatchQueue, job); err != nil {
		// The requeued records are PENDING again; the reconciliation
		// sweep picks them up if this enqueue is lost.
		return nil, fmt.Errorf("failed to enqueue retry job: %w", err)
	}

	r.metrics.AddRetryRequeued(campaign.Channel.String(), len(ids))
	r.logger.Info("retry requeued failed records",
		zap.String("campaignId", campaign.ID),
		zap.String("eventId", campaign.EventID),
		zap.Int("requeued", len(ids)),
	)

	return &RetryResult{Requeued: len(ids)}, nil
}
