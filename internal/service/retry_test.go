package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventline/comms-engine/internal/domain"
)

func newTestRetryCoordinator(t *testing.T, campaigns *fakeCampaignRepo, records *fakeRecordRepo, publisher *fakePublisher) *RetryCoordinator {
	t.Helper()
	coordinator, err := NewRetryCoordinator(campaigns, records, publisher, nil)
	if err != nil {
		t.Fatalf("NewRetryCoordinator() error = %v", err)
	}
	return coordinator
}

func TestRetryRequeuesOnlyFailedRecords(t *testing.T) {
	t.Parallel()

	campaigns := newFakeCampaignRepo()
	records := newFakeRecordRepo()
	seedCampaign(campaigns, records, "c1", "a@example.com", "b@example.com", "c@example.com")

	ctx := context.Background()
	if _, err := records.MarkSent(ctx, "c1-r1", "msg-1", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	if _, err := records.MarkFailed(ctx, "c1-r2", "mailbox unavailable"); err != nil {
		t.Fatal(err)
	}
	if _, err := records.MarkFailed(ctx, "c1-r3", "relay timeout"); err != nil {
		t.Fatal(err)
	}

	publisher := &fakePublisher{}
	coordinator := newTestRetryCoordinator(t, campaigns, records, publisher)

	result, err := coordinator.Retry(ctx, "event-1", "c1")
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if result.Requeued != 2 {
		t.Errorf("Requeued = %d, want 2", result.Requeued)
	}

	jobs := publisher.jobs()
	if len(jobs) != 1 {
		t.Fatalf("published jobs = %d, want 1", len(jobs))
	}
	if jobs[0].CampaignID != "c1" || len(jobs[0].RecordIDs) != 2 {
		t.Errorf("job = %+v, want campaign c1 scoped to the 2 requeued records", jobs[0])
	}

	// The failed records are PENDING again with their errors cleared.
	r2 := records.get("c1-r2")
	if r2.Status != domain.RecordStatusPending || r2.ErrorMessage != nil {
		t.Errorf("requeued record = %s with error %v, want PENDING with no error", r2.Status, r2.ErrorMessage)
	}
	// The sent record is untouched.
	if got := records.get("c1-r1").Status; got != domain.RecordStatusSent {
		t.Errorf("sent record status = %s, want SENT", got)
	}
}

func TestRetryWithoutFailuresIsNoOp(t *testing.T) {
	t.Parallel()

	campaigns := newFakeCampaignRepo()
	records := newFakeRecordRepo()
	seedCampaign(campaigns, records, "c1", "a@example.com")

	ctx := context.Background()
	if _, err := records.MarkSent(ctx, "c1-r1", "msg-1", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	publisher := &fakePublisher{}
	coordinator := newTestRetryCoordinator(t, campaigns, records, publisher)

	result, err := coordinator.Retry(ctx, "event-1", "c1")
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if result.Requeued != 0 {
		t.Errorf("Requeued = %d, want 0", result.Requeued)
	}
	if len(publisher.jobs()) != 0 {
		t.Error("a retry with nothing to requeue must not enqueue a job")
	}
}

func TestRetryUnknownCampaign(t *testing.T) {
	t.Parallel()

	coordinator := newTestRetryCoordinator(t, newFakeCampaignRepo(), newFakeRecordRepo(), &fakePublisher{})

	if _, err := coordinator.Retry(context.Background(), "event-1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Retry() error = %v, want ErrNotFound", err)
	}
}

func TestRetryCrossEventCampaign(t *testing.T) {
	t.Parallel()

	campaigns := newFakeCampaignRepo()
	records := newFakeRecordRepo()
	seedCampaign(campaigns, records, "c1", "a@example.com")

	coordinator := newTestRetryCoordinator(t, campaigns, records, &fakePublisher{})

	if _, err := coordinator.Retry(context.Background(), "other-event", "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Retry() error = %v, want ErrNotFound", err)
	}
}

func TestRetryPublishFailure(t *testing.T) {
	t.Parallel()

	campaigns := newFakeCampaignRepo()
	records := newFakeRecordRepo()
	seedCampaign(campaigns, records, "c1", "a@example.com")
	if _, err := records.MarkFailed(context.Background(), "c1-r1", "boom"); err != nil {
		t.Fatal(err)
	}

	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	coordinator := newTestRetryCoordinator(t, campaigns, records, publisher)

	if _, err := coordinator.Retry(context.Background(), "event-1", "c1"); err == nil {
		t.Fatal("Retry() should surface a publish failure")
	}
	// The record stays PENDING; the sweeper will re-enqueue it.
	if got := records.get("c1-r1").Status; got != domain.RecordStatusPending {
		t.Errorf("record status = %s, want PENDING after failed publish", got)
	}
}
