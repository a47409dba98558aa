package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"responder_server/core/service/pipeline"
)

type countingProcessor struct {
	mu     sync.Mutex
	counts map[string]int
	notify chan string
}

func newCountingProcessor() *countingProcessor {
	return &countingProcessor{
		counts: make(map[string]int),
		notify: make(chan string, 64),
	}
}

func (p *countingProcessor) ProcessBatch(_ context.Context, account string) (pipeline.BatchStats, error) {
	p.mu.Lock()
	p.counts[account]++
	p.mu.Unlock()
	p.notify <- account
	return pipeline.BatchStats{Account: account, Fetched: 1}, nil
}

func (p *countingProcessor) count(account string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[account]
}

func TestBatchRunnerProcessesEveryAccount(t *testing.T) {
	processor := newCountingProcessor()
	accounts := []string{"a@example.com", "b@example.com"}
	runner := NewBatchRunner(processor, accounts, time.Hour)

	runner.Start()
	defer runner.Stop()

	seen := make(map[string]bool)
	deadline := time.After(2 * time.Second)
	for len(seen) < len(accounts) {
		select {
		case account := <-processor.notify:
			seen[account] = true
		case <-deadline:
			t.Fatalf("first cycle incomplete, saw %v", seen)
		}
	}

	for _, account := range accounts {
		if processor.count(account) != 1 {
			t.Errorf("account %s processed %d times in first cycle, want 1", account, processor.count(account))
		}
	}
}

func TestBatchRunnerRepeatsOnInterval(t *testing.T) {
	processor := newCountingProcessor()
	runner := NewBatchRunner(processor, []string{"a@example.com"}, 20*time.Millisecond)

	runner.Start()

	deadline := time.After(2 * time.Second)
	cycles := 0
	for cycles < 3 {
		select {
		case <-processor.notify:
			cycles++
		case <-deadline:
			t.Fatalf("only %d cycles before deadline, want 3", cycles)
		}
	}
	runner.Stop()
}

func TestBatchRunnerStopWaitsForInFlightCycle(t *testing.T) {
	processor := newCountingProcessor()
	runner := NewBatchRunner(processor, []string{"a@example.com"}, time.Hour)

	runner.Start()

	select {
	case <-processor.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle never ran")
	}

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
