package service

import (
	"context"
	"fmt"

	"github.com/eventline/comms-engine/internal/domain"
	"github.com/eventline/comms-engine/internal/repository"
	"go.uber.org/zap"
)

// CampaignStats is a point-in-time rollup of a campaign's record outcomes.
type CampaignStats struct {
	Pending int
	Sent    int
	Failed  int
	Status  domain.CampaignStatus
}

// StatsAggregator derives campaign status purely from record rows, so a
// recompute over unchanged records always lands on the same status.
type StatsAggregator struct {
	campaigns repository.CampaignRepository
	records   repository.RecordRepository
	logger    *zap.Logger
}

func NewStatsAggregator(campaigns repository.CampaignRepository, records repository.RecordRepository, logger *zap.Logger) (*StatsAggregator, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if records == nil {
		return nil, fmt.Errorf("record repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StatsAggregator{
		campaigns: campaigns,
		records:   records,
		logger:    logger,
	}, nil
}

// Recompute reads the record status counts for a campaign and writes the
// derived campaign status back.
func (a *StatsAggregator) Recompute(ctx context.Context, campaignID string) (*CampaignStats, error) {
	summaries, err := a.records.SummaryByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize records: %w", err)
	}

	stats := &CampaignStats{}
	for _, summary := range summaries {
		switch summary.Status {
		case domain.RecordStatusPending:
			stats.Pending += summary.Count
		case domain.RecordStatusSent:
			stats.Sent += summary.Count
		case domain.RecordStatusFailed:
			stats.Failed += summary.Count
		default:
			a.logger.Warn("unknown record status in summary",
				zap.String("campaignId", campaignID),
				zap.String("status", summary.Status.String()),
			)
		}
	}
	stats.Status = deriveCampaignStatus(stats.Pending, stats.Sent, stats.Failed)

	if err := a.campaigns.UpdateStatus(ctx, campaignID, stats.Status); err != nil {
		return nil, fmt.Errorf("failed to update campaign status: %w", err)
	}
	return stats, nil
}

func deriveCampaignStatus(pending, sent, failed int) domain.CampaignStatus {
	switch {
	case pending > 0:
		return domain.CampaignStatusSending
	case failed == 0:
		// Covers the zero-record campaign: nothing to send means done.
		return domain.CampaignStatusSent
	case sent == 0:
		return domain.CampaignStatusFailed
	default:
		return domain.CampaignStatusPartiallyFailed
	}
}
