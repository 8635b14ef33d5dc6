package workers

import (
	"club-chat/domain/chat"
	"context"
	"log/slog"
	"time"
)

type SubscriberCounter interface {
	Clubs() []chat.ClubID
	CountForClub(clubID chat.ClubID) int
}

type SubscriberRecorder interface {
	SetSubscribers(counts map[chat.ClubID]int)
}

// TelemetryWorker samples the live subscriptions of every club at a fixed interval.
type TelemetryWorker struct {
	log      *slog.Logger
	interval time.Duration
	counter  SubscriberCounter
	recorder SubscriberRecorder
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration,
	counter SubscriberCounter, recorder SubscriberRecorder) *TelemetryWorker {
	return &TelemetryWorker{
		log:      log,
		interval: interval,
		counter:  counter,
		recorder: recorder,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *TelemetryWorker) sample() {
	counts := make(map[chat.ClubID]int)
	for _, clubID := range w.counter.Clubs() {
		counts[clubID] = w.counter.CountForClub(clubID)
	}
	w.recorder.SetSubscribers(counts)
	w.log.Debug("Subscriptions sampled", "clubs", len(counts))
}
