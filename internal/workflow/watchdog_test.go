package workflow

import (
	"context"
	"testing"
	"time"

	"classcoach/internal/analysis"
	"classcoach/internal/notifications"
	"classcoach/internal/testsupport"
)

func TestWatchdogMarksStalledRecords(t *testing.T) {
	h := newHarness(t)
	stuck := testsupport.NewAnalysis(t, h.store, "uploads/a.wav")
	testsupport.MustUpdate(t, h.store, stuck.ID, analysis.Mutation{From: analysis.StatusUploaded, To: analysis.StatusTranscribing})
	waiting := testsupport.NewAnalysis(t, h.store, "uploads/b.wav")

	w := NewWatchdog(h.store, h.notifier, nil, 30*time.Minute, time.Minute)
	w.now = func() time.Time { return time.Now().Add(time.Hour) }

	marked, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if marked != 1 {
		t.Fatalf("marked = %d, want 1", marked)
	}

	got := h.get(t, stuck.ID)
	if got.Status != analysis.StatusError || got.ErrorMessage != "stalled" {
		t.Fatalf("stuck record = %s %q", got.Status, got.ErrorMessage)
	}
	if h.get(t, waiting.ID).Status != analysis.StatusUploaded {
		t.Fatal("uploaded record must not be swept")
	}

	last := w.LastSweep()
	if last.Marked != 1 || last.Error != "" || last.At.IsZero() {
		t.Fatalf("last sweep = %+v", last)
	}
	events := h.notifier.snapshot()
	if len(events) != 1 || events[0].event != notifications.EventStalledSwept || events[0].payload["count"] != 1 {
		t.Fatalf("events = %+v", events)
	}

	marked, err = w.Sweep(context.Background())
	if err != nil || marked != 0 {
		t.Fatalf("second sweep = %d, %v", marked, err)
	}
	if len(h.notifier.snapshot()) != 1 {
		t.Fatal("empty sweep published a notification")
	}
}

func TestWatchdogIgnoresFreshRecords(t *testing.T) {
	h := newHarness(t)
	rec := testsupport.NewAnalysis(t, h.store, "uploads/a.wav")
	testsupport.MustUpdate(t, h.store, rec.ID, analysis.Mutation{From: analysis.StatusUploaded, To: analysis.StatusTranscribing})

	w := NewWatchdog(h.store, h.notifier, nil, 30*time.Minute, time.Minute)
	marked, err := w.Sweep(context.Background())
	if err != nil || marked != 0 {
		t.Fatalf("Sweep = %d, %v", marked, err)
	}
	if h.get(t, rec.ID).Status != analysis.StatusTranscribing {
		t.Fatal("fresh record was swept")
	}
}

func TestWatchdogStalledRecordLosesToLiveDriver(t *testing.T) {
	h := newHarness(t)
	rec := testsupport.NewAnalysis(t, h.store, "uploads/a.wav")
	testsupport.MustUpdate(t, h.store, rec.ID, analysis.Mutation{From: analysis.StatusUploaded, To: analysis.StatusTranscribing})

	// The driver advances the record after the sweep listed it.
	if _, err := h.store.MarkStalled(context.Background(), rec.ID, analysis.StatusAnalyzingProsody, "stalled"); err == nil {
		t.Fatal("MarkStalled with the wrong source status succeeded")
	}
	if h.get(t, rec.ID).Status != analysis.StatusTranscribing {
		t.Fatal("guarded sweep overwrote a record in another status")
	}
}

func TestWatchdogRunDisabled(t *testing.T) {
	h := newHarness(t)
	w := NewWatchdog(h.store, h.notifier, nil, 0, time.Minute)
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled watchdog kept running")
	}
}
