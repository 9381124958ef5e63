package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventline/comms-engine/internal/domain"
	"github.com/eventline/comms-engine/internal/observability"
	"github.com/eventline/comms-engine/internal/queue"
	"github.com/eventline/comms-engine/internal/repository"
	"go.uber.org/zap"
)

// SendInput is the caller-facing payload for creating a campaign.
type SendInput struct {
	Channel     string
	Subject     string
	Content     string
	ScheduledAt *time.Time
}

// SendResult is returned as soon as the campaign and its records exist.
// Dispatch has started (or is scheduled) at that point, not completed.
type SendResult struct {
	Campaign *domain.Campaign
	Warning  string
}

type CampaignService struct {
	store     repository.CampaignStore
	campaigns repository.CampaignRepository
	records   repository.RecordRepository
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewCampaignService(
	store repository.CampaignStore,
	campaigns repository.CampaignRepository,
	records repository.RecordRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*CampaignService, error) {
	if store == nil {
		return nil, fmt.Errorf("campaign store is required")
	}
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

	return &CampaignService{
		store:     store,
		campaigns: campaigns,
		records:   records,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *CampaignService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// CanSend reports quota usage for an event. The answer is advisory: the
// creation transaction re-checks the count under the event lock.
func (s *CampaignService) CanSend(ctx context.Context, eventID string) (domain.QuotaStatus, error) {
	if strings.TrimSpace(eventID) == "" {
		return domain.QuotaStatus{}, fmt.Errorf("%w: event id is required", domain.ErrValidation)
	}

	used, err := s.campaigns.CountActive(ctx, strings.TrimSpace(eventID))
	if err != nil {
		return domain.QuotaStatus{}, fmt.Errorf("failed to count campaigns: %w", err)
	}

	return domain.NewQuotaStatus(int(used), domain.MaxCampaignsPerEvent), nil
}

// Send validates the request, creates the campaign with its PENDING
// records in one transaction, and enqueues the dispatch job unless the
// campaign is scheduled for later.
func (s *CampaignService) Send(ctx context.Context, eventID string, sentBy string, input SendInput) (*SendResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	channel, err := domain.ParseChannelFromString(input.Channel)
	if err != nil {
		return nil, err
	}
	if channel == domain.ChannelSMS {
		return nil, fmt.Errorf("%w: SMS sending is currently unavailable", domain.ErrChannelDisabled)
	}

	draft := &domain.Campaign{
		EventID:     strings.TrimSpace(eventID),
		SentBy:      strings.TrimSpace(sentBy),
		Channel:     channel,
		Subject:     strings.TrimSpace(input.Subject),
		Body:        strings.TrimSpace(input.Content),
		ScheduledAt: input.ScheduledAt,
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	campaign, resolution, err := s.store.Create(ctx, draft)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			s.metrics.IncQuotaRejected()
		}
		return nil, err
	}
	s.metrics.IncCampaignCreated(channel.String())

	if shouldDispatchImmediately(campaign.ScheduledAt, s.now().UTC()) {
		job := queue.DispatchJob{CampaignID: campaign.ID}
		if err := s.publisher.Publish(ctx, queue.DispatchQueue, job); err != nil {
			// The records are already durable as PENDING rows; the
			// reconciliation sweep re-enqueues them, so the request
			// still succeeds.
			s.logger.Error("failed to enqueue dispatch job",
				zap.String("campaignId", campaign.ID),
				zap.String("eventId", campaign.EventID),
				zap.Error(err),
			)
		}
	}

	return &SendResult{
		Campaign: campaign,
		Warning:  exclusionWarning(resolution),
	}, nil
}

// Dispatch enqueues a dispatch pass for an existing campaign. The external
// scheduler calls this when a scheduled campaign becomes due.
func (s *CampaignService) Dispatch(ctx context.Context, eventID string, campaignID string) error {
	if _, err := campaignForEvent(ctx, s.campaigns, eventID, campaignID); err != nil {
		return err
	}

	job := queue.DispatchJob{CampaignID: campaignID}
	if err := s.publisher.Publish(ctx, queue.DispatchQueue, job); err != nil {
		return fmt.Errorf("failed to enqueue dispatch job: %w", err)
	}
	return nil
}

func (s *CampaignService) List(ctx context.Context, eventID string, params repository.ListParams) ([]domain.Campaign, int64, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, 0, fmt.Errorf("%w: event id is required", domain.ErrValidation)
	}
	return s.campaigns.ListByEvent(ctx, strings.TrimSpace(eventID), params)
}

func (s *CampaignService) ListRecords(ctx context.Context, eventID string, campaignID string, params repository.ListParams) ([]domain.DispatchRecord, int64, error) {
	if _, err := campaignForEvent(ctx, s.campaigns, eventID, campaignID); err != nil {
		return nil, 0, err
	}
	return s.records.ListByCampaign(ctx, campaignID, params)
}

func campaignForEvent(ctx context.Context, campaigns repository.CampaignRepository, eventID string, campaignID string) (*domain.Campaign, error) {
	if strings.TrimSpace(campaignID) == "" {
		return nil, fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}

	campaign, err := campaigns.GetByID(ctx, strings.TrimSpace(campaignID))
	if err != nil {
		return nil, err
	}
	if campaign.EventID != strings.TrimSpace(eventID) {
		return nil, fmt.Errorf("%w: campaign %s does not belong to event %s", domain.ErrNotFound, campaignID, eventID)
	}
	return campaign, nil
}

func exclusionWarning(res domain.Resolution) string {
	excluded := res.ExcludedCount()
	if excluded == 0 {
		return ""
	}
	return fmt.Sprintf("%d of %d registrants were skipped: %d virtual addresses, %d missing addresses",
		excluded, res.Total, res.ExcludedVirtual, res.ExcludedMissing)
}

func shouldDispatchImmediately(scheduledAt *time.Time, now time.Time) bool {
	if scheduledAt == nil {
		return true
	}
	return !scheduledAt.After(now)
}
