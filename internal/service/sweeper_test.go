package service

import (
	"context"
	"testing"
	"time"
)

func TestSweeperReenqueuesStaleCampaigns(t *testing.T) {
	t.Parallel()

	records := newFakeRecordRepo()
	records.staleIDs = []string{"c1", "c2"}
	publisher := &fakePublisher{}

	sweeper, err := NewReconciliationSweeper(records, publisher, time.Minute, 5*time.Minute, nil)
	if err != nil {
		t.Fatalf("NewReconciliationSweeper() error = %v", err)
	}

	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	jobs := publisher.jobs()
	if len(jobs) != 2 {
		t.Fatalf("published jobs = %d, want 2", len(jobs))
	}
	for i, want := range []string{"c1", "c2"} {
		if jobs[i].CampaignID != want {
			t.Errorf("job %d campaign = %s, want %s", i, jobs[i].CampaignID, want)
		}
		if len(jobs[i].RecordIDs) != 0 {
			t.Errorf("sweep job %d should target the whole campaign", i)
		}
	}
}

func TestSweeperNoStaleCampaigns(t *testing.T) {
	t.Parallel()

	records := newFakeRecordRepo()
	publisher := &fakePublisher{}

	sweeper, err := NewReconciliationSweeper(records, publisher, time.Minute, 5*time.Minute, nil)
	if err != nil {
		t.Fatalf("NewReconciliationSweeper() error = %v", err)
	}

	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(publisher.jobs()) != 0 {
		t.Error("nothing should be enqueued when no campaign is stale")
	}
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	sweeper, err := NewReconciliationSweeper(newFakeRecordRepo(), &fakePublisher{}, 10*time.Millisecond, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewReconciliationSweeper() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sweeper.Start(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start() returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
