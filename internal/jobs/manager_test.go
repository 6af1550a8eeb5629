package jobs

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kisusu115/library-bookworm/internal/aladin"
)

type gatedSearcher struct {
	gate chan struct{}
}

func (s *gatedSearcher) SearchByISBN(ctx context.Context, isbn, ttbKey string) (*aladin.Item, error) {
	if s.gate != nil {
		<-s.gate
	}
	return &aladin.Item{ISBN13: isbn}, nil
}

func newTestManager(t *testing.T, searcher Searcher, builder Builder) (*Manager, *Registry) {
	t.Helper()
	registry := NewRegistry(time.Hour, nil)
	runner := NewRunner(searcher, builder, 0, nil)
	manager, err := NewManager(registry, runner, nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	return manager, registry
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManagerProcessReturnsImmediately(t *testing.T) {
	searcher := &gatedSearcher{gate: make(chan struct{})}
	manager, registry := newTestManager(t, searcher, &captureBuilder{})

	jobID := manager.Process([]string{"9788966261024"}, "test-key")
	if jobID == "" {
		t.Fatal("expected job ID")
	}

	snapshot, err := registry.Get(jobID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if snapshot.Status != StatusRunning {
		t.Fatalf("job should still be running, got %s", snapshot.Status)
	}

	close(searcher.gate)
	waitFor(t, "job completion", func() bool {
		s, err := registry.Get(jobID)
		return err == nil && s.Status == StatusSucceeded
	})
}

func TestManagerDeliversProgressAndComplete(t *testing.T) {
	gate := make(chan struct{})
	searcher := &gatedSearcher{gate: gate}
	manager, _ := newTestManager(t, searcher, &captureBuilder{})

	jobID := manager.Process([]string{"9788966260001", "9788966260002"}, "test-key")

	emitter, err := manager.Subscribe(jobID)
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	close(gate)

	var events []Event
	for ev := range emitter.Events() {
		events = append(events, ev)
	}
	if len(events) == 0 {
		t.Fatal("expected at least the terminal event")
	}

	last := events[len(events)-1]
	if last.Name != EventComplete || last.Data != "100.00" {
		t.Fatalf("unexpected terminal event: %+v", last)
	}

	prev := -1.0
	for _, ev := range events[:len(events)-1] {
		if ev.Name != EventProgress {
			t.Fatalf("unexpected event before terminal: %+v", ev)
		}
		// 進捗は小数2桁で単調非減少
		if !strings.Contains(ev.Data, ".") || len(ev.Data)-strings.Index(ev.Data, ".") != 3 {
			t.Fatalf("progress not formatted to two decimals: %q", ev.Data)
		}
		value, err := strconv.ParseFloat(ev.Data, 64)
		if err != nil {
			t.Fatalf("unparsable progress %q: %v", ev.Data, err)
		}
		if value < prev {
			t.Fatalf("progress decreased: %+v", events)
		}
		prev = value
	}
}

func TestManagerRejectFailsJob(t *testing.T) {
	manager, registry := newTestManager(t, &gatedSearcher{}, &captureBuilder{})

	jobID := manager.Reject("入力の解析に失敗しました")

	snapshot, err := registry.Get(jobID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if snapshot.Status != StatusFailed {
		t.Fatalf("expected failed job, got %s", snapshot.Status)
	}

	emitter, err := manager.Subscribe(jobID)
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	ev, ok := <-emitter.Events()
	if !ok {
		t.Fatal("expected replayed error event")
	}
	if ev.Name != EventError || ev.Data != "入力の解析に失敗しました" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	_, err = manager.TakeArtifact(jobID)
	var failed *JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected JobFailedError, got %v", err)
	}
}

func TestManagerBuilderFailureSendsErrorEvent(t *testing.T) {
	gate := make(chan struct{})
	searcher := &gatedSearcher{gate: gate}
	builder := &captureBuilder{err: errors.New("build blew up")}
	manager, registry := newTestManager(t, searcher, builder)

	jobID := manager.Process([]string{"9788966261024"}, "test-key")
	emitter, err := manager.Subscribe(jobID)
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	close(gate)

	var last Event
	for ev := range emitter.Events() {
		last = ev
	}
	if last.Name != EventError || !strings.Contains(last.Data, "build blew up") {
		t.Fatalf("unexpected terminal event: %+v", last)
	}

	snapshot, err := registry.Get(jobID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if snapshot.Status != StatusFailed || snapshot.HasArtifact {
		t.Fatalf("unexpected snapshot after failure: %+v", snapshot)
	}
}

func TestManagerEvictsJobWhenTerminalDeliveryFails(t *testing.T) {
	gate := make(chan struct{})
	searcher := &gatedSearcher{gate: gate}
	manager, registry := newTestManager(t, searcher, &captureBuilder{})

	jobID := manager.Process([]string{"9788966261024"}, "test-key")
	emitter, err := manager.Subscribe(jobID)
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}

	// クライアント切断相当: シンクを閉じてから完了させる
	emitter.Close()
	close(gate)

	waitFor(t, "job eviction", func() bool {
		_, err := registry.Get(jobID)
		return errors.Is(err, ErrJobNotFound)
	})
}

func TestManagerKeepsJobWhenNeverSubscribed(t *testing.T) {
	manager, registry := newTestManager(t, &gatedSearcher{}, &captureBuilder{})

	jobID := manager.Process([]string{"9788966261024"}, "test-key")

	waitFor(t, "job completion", func() bool {
		s, err := registry.Get(jobID)
		return err == nil && s.Status == StatusSucceeded
	})

	// 購読者がいなくても成果物はIDで回収できる
	if _, err := manager.TakeArtifact(jobID); err != nil {
		t.Fatalf("TakeArtifact returned error: %v", err)
	}
}
