// Package worker drives the periodic mailbox processing cycle.
package worker

import (
	"context"
	"sync"
	"time"

	"responder_server/core/service/pipeline"
	"responder_server/pkg/logger"
)

// BatchProcessor is the slice of the orchestrator the runner needs.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, account string) (pipeline.BatchStats, error)
}

// BatchRunner polls every monitored account on a fixed interval. Accounts
// run concurrently with each other; messages within an account stay
// strictly sequential.
type BatchRunner struct {
	processor BatchProcessor
	accounts  []string
	interval  time.Duration
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBatchRunner(processor BatchProcessor, accounts []string, interval time.Duration) *BatchRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchRunner{
		processor: processor,
		accounts:  accounts,
		interval:  interval,
		log:       logger.WithField("component", "batch_runner"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the polling loop. The first cycle runs immediately.
func (r *BatchRunner) Start() {
	r.log.Info("starting batch runner for %d accounts (interval %s)", len(r.accounts), r.interval)
	r.wg.Add(1)
	go r.run()
}

// Stop cancels the loop and waits for in-flight cycles to finish.
func (r *BatchRunner) Stop() {
	r.log.Info("stopping batch runner")
	r.cancel()
	r.wg.Wait()
}

func (r *BatchRunner) run() {
	defer r.wg.Done()

	r.runCycle()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.log.Info("batch runner stopped")
			return
		case <-ticker.C:
			r.runCycle()
		}
	}
}

// runCycle processes every account once, one goroutine per account, and
// waits for all of them before returning.
func (r *BatchRunner) runCycle() {
	ctx, cancel := context.WithTimeout(r.ctx, r.interval)
	defer cancel()

	var wg sync.WaitGroup
	for _, account := range r.accounts {
		wg.Add(1)
		go func(account string) {
			defer wg.Done()

			started := time.Now()
			stats, err := r.processor.ProcessBatch(ctx, account)
			if err != nil {
				r.log.Error("batch failed for %s: %v", account, err)
				return
			}
			r.log.WithFields(map[string]interface{}{
				"account":   account,
				"fetched":   stats.Fetched,
				"skipped":   stats.Skipped,
				"no_reply":  stats.NoReply,
				"drafted":   stats.Drafted,
				"auto_sent": stats.AutoSent,
				"errors":    stats.Errors,
			}).Info("batch cycle finished in %s", time.Since(started).Round(time.Millisecond))
		}(account)
	}
	wg.Wait()
}
