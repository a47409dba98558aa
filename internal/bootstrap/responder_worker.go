package bootstrap

import (
	"responder_server/adapter/in/worker"
	"responder_server/config"
	"responder_server/pkg/logger"
)

// Worker runs the periodic mailbox processing loop.
type Worker struct {
	runner *worker.BatchRunner
	deps   *Dependencies
	done   chan struct{}
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "replyagent-worker",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	runner := worker.NewBatchRunner(deps.Orchestrator, cfg.MonitoredAccounts, cfg.BatchInterval)

	return &Worker{
		runner: runner,
		deps:   deps,
		done:   make(chan struct{}),
	}, cleanup, nil
}

// Start launches the batch loop and blocks until Stop is called.
func (w *Worker) Start() {
	w.runner.Start()
	<-w.done
}

// Stop halts the batch loop and waits for in-flight cycles.
func (w *Worker) Stop() {
	w.runner.Stop()
	close(w.done)
}

func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
