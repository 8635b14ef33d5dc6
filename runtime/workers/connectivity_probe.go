package workers

import (
	"club-chat/contract"
	"context"
	"log/slog"
	"time"
)

type OnlineSetter interface {
	Set(online bool)
}

// ConnectivityProbeWorker pings the message store backend and feeds
// the result into the process-wide connectivity signal.
type ConnectivityProbeWorker struct {
	log      *slog.Logger
	pinger   contract.Pinger
	monitor  OnlineSetter
	interval time.Duration
	timeout  time.Duration
}

func NewConnectivityProbeWorker(
	log *slog.Logger,
	pinger contract.Pinger,
	monitor OnlineSetter,
	interval time.Duration,
	timeout time.Duration,
) *ConnectivityProbeWorker {
	return &ConnectivityProbeWorker{
		log:      log,
		pinger:   pinger,
		monitor:  monitor,
		interval: interval,
		timeout:  timeout,
	}
}

func (w *ConnectivityProbeWorker) Run(ctx context.Context) error {
	w.log.Info("Starting connectivity probe worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping connectivity probe")
			return nil
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *ConnectivityProbeWorker) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.pinger.Ping(pingCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("Store unreachable", "error", err)
		w.monitor.Set(false)
		return
	}
	w.monitor.Set(true)
}
