package workers

import (
	"club-chat/contract"
	"club-chat/errors"
	"club-chat/session"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"
)

const (
	defaultRestartInterval = 200 * time.Millisecond
	defaultMaxRestartDelay = 30 * time.Second
)

// RestartRecorder is told about every restart, observability.SessionMetrics implements it.
type RestartRecorder interface {
	WorkerRestarted(name string)
}

// WorkerStatus is the last known state of a supervised worker.
type WorkerStatus struct {
	Running   bool      `json:"running"`
	Restarts  int       `json:"restarts"`
	LastError string    `json:"lastError,omitempty"`
	Since     time.Time `json:"since"`
}

// Supervisor runs the background workers of the server.
// A worker failing or panicking is restarted with a growing delay, the delay starts over once
// a run outlived the maximum delay. A worker returning nil is finished for good.
type Supervisor struct {
	Cancel context.CancelFunc
	wg     *sync.WaitGroup
	log    *slog.Logger

	workers         []contract.Worker
	restartInterval time.Duration
	maxRestartDelay time.Duration
	recorder        RestartRecorder

	mu     sync.RWMutex
	status map[string]WorkerStatus
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = defaultRestartInterval
	}
	return &Supervisor{
		wg:              &sync.WaitGroup{},
		log:             log,
		restartInterval: restartInterval,
		maxRestartDelay: max(defaultMaxRestartDelay, restartInterval),
		status:          make(map[string]WorkerStatus),
	}
}

// WithRecorder reports restarts to recorder.
func (s *Supervisor) WithRecorder(recorder RestartRecorder) *Supervisor {
	s.recorder = recorder
	return s
}

// WithMaxRestartDelay caps the delay between two restarts of the same worker.
func (s *Supervisor) WithMaxRestartDelay(delay time.Duration) *Supervisor {
	if delay >= s.restartInterval {
		s.maxRestartDelay = delay
	}
	return s
}

// Run blocks until every worker is done. Stop or cancelling ctx ends them.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start supervises one worker in its own goroutine.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()
		defer s.update(name, func(st *WorkerStatus) { st.Running = false })

		attempt := 0
		for ctx.Err() == nil {
			started := time.Now()
			s.update(name, func(st *WorkerStatus) {
				st.Running = true
				st.Since = started
			})

			err := runSafely(ctx, worker)
			switch {
			case err == nil:
				s.log.Info("Worker finished", "name", name)
				return
			case ctx.Err() != nil:
				s.log.Info("Worker stopped", "name", name)
				return
			}

			if time.Since(started) >= s.maxRestartDelay {
				attempt = 0
			}
			delay := session.Backoff(attempt, s.restartInterval, s.maxRestartDelay)
			attempt++
			s.update(name, func(st *WorkerStatus) {
				st.Running = false
				st.Restarts++
				st.LastError = err.Error()
			})
			if s.recorder != nil {
				s.recorder.WorkerRestarted(name)
			}
			s.log.Warn("Worker crashed, restarting", "name", name, "error", err, "restart_in", delay)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}

func runSafely(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

func (s *Supervisor) update(name string, change func(*WorkerStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[name]
	change(&st)
	s.status[name] = st
}

// Status returns a copy of the state of every worker started so far.
func (s *Supervisor) Status() map[string]WorkerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.status)
}

// Stop cancels every worker, Run returns once they are gone.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
