package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventline/comms-engine/internal/domain"
	"github.com/eventline/comms-engine/internal/observability"
	"github.com/eventline/comms-engine/internal/provider"
	"github.com/eventline/comms-engine/internal/queue"
	"github.com/eventline/comms-engine/internal/ratelimit"
	"github.com/eventline/comms-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDispatchConcurrency = 10
	defaultSendTimeout         = 10 * time.Second
)

// DispatchWorker drains a campaign's PENDING records through the channel's
// provider adapter. Every record ends a pass in SENT or FAILED; the only
// records left PENDING are those already claimed by a concurrent pass.
type DispatchWorker struct {
	campaigns   repository.CampaignRepository
	records     repository.RecordRepository
	adapters    map[domain.Channel]provider.Adapter
	limiter     ratelimit.RateLimiter
	consumer    queue.Consumer
	stats       *StatsAggregator
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	sendTimeout time.Duration
	now         func() time.Time
}

func NewDispatchWorker(
	campaigns repository.CampaignRepository,
	records repository.RecordRepository,
	adapters map[domain.Channel]provider.Adapter,
	limiter ratelimit.RateLimiter,
	consumer queue.Consumer,
	stats *StatsAggregator,
	concurrency int,
	sendTimeout time.Duration,
	logger *zap.Logger,
) (*DispatchWorker, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if records == nil {
		return nil, fmt.Errorf("record repository is required")
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("at least one provider adapter is required")
	}
	if stats == nil {
		return nil, fmt.Errorf("stats aggregator is required")
	}
	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchWorker{
		campaigns:   campaigns,
		records:     records,
		adapters:    adapters,
		limiter:     limiter,
		consumer:    consumer,
		stats:       stats,
		logger:      logger,
		concurrency: concurrency,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}, nil
}

func (w *DispatchWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start consumes dispatch jobs until the context is cancelled.
func (w *DispatchWorker) Start(ctx context.Context) error {
	if w.consumer == nil {
		return fmt.Errorf("consumer is required")
	}
	return w.consumer.Consume(ctx, queue.DispatchQueue, w.handleJob)
}

func (w *DispatchWorker) handleJob(ctx context.Context, job queue.DispatchJob) error {
	return w.Run(ctx, job.CampaignID, job.RecordIDs)
}

// Run executes one dispatch pass. With recordIDs empty it targets every
// PENDING record of the campaign; with recordIDs set it targets only those
// records, which is how retry passes stay scoped to requeued failures.
func (w *DispatchWorker) Run(ctx context.Context, campaignID string, recordIDs []string) error {
	log := observability.CampaignLogger(w.logger, campaignID)

	campaign, err := w.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("campaign no longer exists, dropping dispatch job")
			return nil
		}
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	var pending []domain.DispatchRecord
	if len(recordIDs) > 0 {
		pending, err = w.records.GetPendingByIDs(ctx, recordIDs)
	} else {
		pending, err = w.records.GetPendingByCampaign(ctx, campaignID)
	}
	if err != nil {
		return fmt.Errorf("failed to load pending records: %w", err)
	}

	if len(pending) == 0 {
		// Redelivered job or a campaign with zero eligible recipients.
		if _, err := w.stats.Recompute(ctx, campaignID); err != nil {
			return fmt.Errorf("failed to recompute campaign status: %w", err)
		}
		return nil
	}

	channelName := strings.ToLower(campaign.Channel.String())
	adapter, ok := w.adapters[campaign.Channel]
	if !ok {
		message := fmt.Sprintf("no provider adapter configured for channel %s", campaign.Channel)
		log.Error("dispatch pass has no adapter", zap.String("channel", campaign.Channel.String()))
		for i := range pending {
			w.failRecord(ctx, log, pending[i].ID, message, channelName, "no_adapter")
		}
		if _, err := w.stats.Recompute(ctx, campaignID); err != nil {
			return fmt.Errorf("failed to recompute campaign status: %w", err)
		}
		return nil
	}

	log.Info("dispatch pass started",
		zap.String("channel", channelName),
		zap.Int("pendingRecords", len(pending)),
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i := range pending {
		record := pending[i]
		g.Go(func() error {
			w.sendOne(groupCtx, log, campaign, record, adapter, channelName)
			return nil
		})
	}
	_ = g.Wait()

	stats, err := w.stats.Recompute(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to recompute campaign status: %w", err)
	}

	log.Info("dispatch pass finished",
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed),
		zap.Int("pending", stats.Pending),
		zap.String("status", stats.Status.String()),
	)
	return nil
}

// sendOne moves a single record out of PENDING. A send error marks the
// record FAILED with the provider's message; it never aborts the pass.
func (w *DispatchWorker) sendOne(ctx context.Context, log *zap.Logger, campaign *domain.Campaign, record domain.DispatchRecord, adapter provider.Adapter, channelName string) {
	w.metrics.IncDispatchInFlight(channelName)
	defer w.metrics.DecDispatchInFlight(channelName)

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, channelName); err != nil {
			w.failRecord(ctx, log, record.ID, fmt.Sprintf("rate limit wait aborted: %v", err), channelName, "rate_limit")
			return
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	start := w.now()
	result, sendErr := adapter.Send(sendCtx, record.Address, campaign.Subject, campaign.Body)
	w.metrics.ObserveSendDuration(channelName, w.now().Sub(start))

	if sendErr != nil {
		w.failRecord(ctx, log, record.ID, sendErr.Error(), channelName, failureReason(sendErr))
		return
	}

	providerMessageID := ""
	if result != nil {
		providerMessageID = strings.TrimSpace(result.MessageID)
	}

	applied, err := w.records.MarkSent(ctx, record.ID, providerMessageID, w.now().UTC())
	if err != nil {
		log.Error("failed to mark record sent",
			zap.String("recordId", record.ID),
			zap.Error(err),
		)
		return
	}
	if !applied {
		// Another pass already resolved this record.
		log.Debug("record already resolved, keeping existing outcome",
			zap.String("recordId", record.ID),
		)
		return
	}
	w.metrics.IncRecordSent(channelName)
}

func (w *DispatchWorker) failRecord(ctx context.Context, log *zap.Logger, recordID string, message string, channelName string, reason string) {
	applied, err := w.records.MarkFailed(ctx, recordID, message)
	if err != nil {
		log.Error("failed to mark record failed",
			zap.String("recordId", recordID),
			zap.Error(err),
		)
		return
	}
	if !applied {
		log.Debug("record already resolved, keeping existing outcome",
			zap.String("recordId", recordID),
		)
		return
	}
	w.metrics.IncRecordFailed(channelName, reason)
}

func failureReason(err error) string {
	if provider.IsTransient(err) {
		return "transient_error"
	}
	return "permanent_error"
}
