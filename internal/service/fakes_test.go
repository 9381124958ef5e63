package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eventline/comms-engine/internal/domain"
	"github.com/eventline/comms-engine/internal/provider"
	"github.com/eventline/comms-engine/internal/queue"
	"github.com/eventline/comms-engine/internal/repository"
)

type fakeCampaignRepo struct {
	mu          sync.Mutex
	campaigns   map[string]*domain.Campaign
	countActive int64
	countErr    error
	statusLog   []domain.CampaignStatus
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[string]*domain.Campaign)}
}

func (f *fakeCampaignRepo) put(c *domain.Campaign) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *c
	f.campaigns[c.ID] = &clone
}

func (f *fakeCampaignRepo) CountActive(_ context.Context, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.countActive, nil
}

func (f *fakeCampaignRepo) GetByID(_ context.Context, id string) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("%w: campaign %s", domain.ErrNotFound, id)
	}
	clone := *campaign
	return &clone, nil
}

func (f *fakeCampaignRepo) ListByEvent(_ context.Context, eventID string, _ repository.ListParams) ([]domain.Campaign, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Campaign
	for _, c := range f.campaigns {
		if c.EventID == eventID {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeCampaignRepo) UpdateStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[id]
	if !ok {
		return fmt.Errorf("%w: campaign %s", domain.ErrNotFound, id)
	}
	campaign.Status = status
	f.statusLog = append(f.statusLog, status)
	return nil
}

func (f *fakeCampaignRepo) status(id string) domain.CampaignStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.campaigns[id].Status
}

type fakeRecordRepo struct {
	mu      sync.Mutex
	order   []string
	records map[string]*domain.DispatchRecord

	pendingErr error
	requeueErr error
	summaryErr error
	markErr    error
	staleIDs   []string
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[string]*domain.DispatchRecord)}
}

func (f *fakeRecordRepo) put(r domain.DispatchRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.records[r.ID]; !exists {
		f.order = append(f.order, r.ID)
	}
	clone := r
	f.records[r.ID] = &clone
}

func (f *fakeRecordRepo) get(id string) domain.DispatchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.records[id]
}

func (f *fakeRecordRepo) GetPendingByCampaign(_ context.Context, campaignID string) ([]domain.DispatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	var out []domain.DispatchRecord
	for _, id := range f.order {
		r := f.records[id]
		if r.CampaignID == campaignID && r.Status == domain.RecordStatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) GetPendingByIDs(_ context.Context, ids []string) ([]domain.DispatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	var out []domain.DispatchRecord
	for _, id := range ids {
		r, ok := f.records[id]
		if ok && r.Status == domain.RecordStatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) ListByCampaign(_ context.Context, campaignID string, _ repository.ListParams) ([]domain.DispatchRecord, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DispatchRecord
	for _, id := range f.order {
		r := f.records[id]
		if r.CampaignID == campaignID {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeRecordRepo) MarkSent(_ context.Context, id string, providerMessageID string, sentAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	r, ok := f.records[id]
	if !ok || r.Status != domain.RecordStatusPending {
		return false, nil
	}
	r.Status = domain.RecordStatusSent
	if providerMessageID != "" {
		r.ProviderMessageID = &providerMessageID
	}
	r.SentAt = &sentAt
	r.ErrorMessage = nil
	return true, nil
}

func (f *fakeRecordRepo) MarkFailed(_ context.Context, id string, errorMessage string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	r, ok := f.records[id]
	if !ok || r.Status != domain.RecordStatusPending {
		return false, nil
	}
	r.Status = domain.RecordStatusFailed
	r.ErrorMessage = &errorMessage
	return true, nil
}

func (f *fakeRecordRepo) RequeueFailed(_ context.Context, campaignID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requeueErr != nil {
		return nil, f.requeueErr
	}
	var ids []string
	for _, id := range f.order {
		r := f.records[id]
		if r.CampaignID == campaignID && r.Status == domain.RecordStatusFailed {
			r.Status = domain.RecordStatusPending
			r.ErrorMessage = nil
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeRecordRepo) SummaryByCampaign(_ context.Context, campaignID string) ([]repository.StatusSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	counts := make(map[domain.RecordStatus]int)
	for _, r := range f.records {
		if r.CampaignID == campaignID {
			counts[r.Status]++
		}
	}
	var out []repository.StatusSummary
	for status, count := range counts {
		out = append(out, repository.StatusSummary{Status: status, Count: count})
	}
	return out, nil
}

func (f *fakeRecordRepo) StalePendingCampaignIDs(_ context.Context, _ time.Time, _ int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.staleIDs, nil
}

func (f *fakeRecordRepo) statusCounts(campaignID string) (pending, sent, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.CampaignID != campaignID {
			continue
		}
		switch r.Status {
		case domain.RecordStatusPending:
			pending++
		case domain.RecordStatusSent:
			sent++
		case domain.RecordStatusFailed:
			failed++
		}
	}
	return pending, sent, failed
}

// fakeCampaignStore runs the real recipient resolution against a canned
// registration list and seeds the record repo with the PENDING rows the
// transactional store would have inserted.
type fakeCampaignStore struct {
	mu          sync.Mutex
	registrants []domain.Registrant
	campaigns   *fakeCampaignRepo
	records     *fakeRecordRepo
	createErr   error
	created     int
}

func (f *fakeCampaignStore) Create(_ context.Context, draft *domain.Campaign) (*domain.Campaign, domain.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, domain.Resolution{}, f.createErr
	}

	resolution := domain.ResolveRecipients(draft.Channel, f.registrants)
	f.created++

	campaign := *draft
	campaign.ID = fmt.Sprintf("campaign-%d", f.created)
	campaign.Status = domain.CampaignStatusSending
	campaign.TotalRegistrations = resolution.Total
	campaign.ValidRecipientsCount = len(resolution.Eligible)
	campaign.ExcludedCount = resolution.ExcludedCount()
	campaign.VirtualExcludedCount = resolution.ExcludedVirtual
	campaign.MissingExcludedCount = resolution.ExcludedMissing

	if f.campaigns != nil {
		f.campaigns.put(&campaign)
	}
	if f.records != nil {
		for i, recipient := range resolution.Eligible {
			f.records.put(domain.DispatchRecord{
				ID:              fmt.Sprintf("%s-record-%d", campaign.ID, i+1),
				CampaignID:      campaign.ID,
				RecipientUserID: recipient.UserID,
				Address:         recipient.Address,
				Status:          domain.RecordStatusPending,
			})
		}
	}

	return &campaign, resolution, nil
}

type fakeEventRepo struct {
	events map[string]*domain.Event
	grants map[string]bool
	err    error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events: make(map[string]*domain.Event),
		grants: make(map[string]bool),
	}
}

func (f *fakeEventRepo) GetByID(_ context.Context, id string) (*domain.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	event, ok := f.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", domain.ErrNotFound, id)
	}
	return event, nil
}

func (f *fakeEventRepo) HasManageGrant(_ context.Context, eventID string, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.grants[eventID+"|"+userID], nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.DispatchJob
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, _ string, job queue.DispatchJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) jobs() []queue.DispatchJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]queue.DispatchJob, len(f.published))
	copy(out, f.published)
	return out
}

// fakeAdapter fails sends for addresses listed in failWith and succeeds
// for everything else.
type fakeAdapter struct {
	mu       sync.Mutex
	calls    int
	sentTo   []string
	failWith map[string]error
	sendErr  error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{failWith: make(map[string]error)}
}

func (f *fakeAdapter) Send(_ context.Context, address string, _ string, _ string) (*provider.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if err, ok := f.failWith[address]; ok {
		return nil, err
	}
	f.sentTo = append(f.sentTo, address)
	return &provider.SendResult{
		StatusCode: 200,
		MessageID:  fmt.Sprintf("msg-%d", f.calls),
	}, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRateLimiter struct {
	mu      sync.Mutex
	waits   int
	waitErr error
}

func (f *fakeRateLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits++
	return f.waitErr
}
