package runtime

import (
	"club-chat/domain/chat"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Subscription is the delivery mailbox of one store subscriber.
// Producers never block: only the latest snapshot is kept until the
// subscriber goroutine picks it up, so an older snapshot can never be
// delivered after a newer one. Errors are delivered after any pending snapshot.
type Subscription struct {
	ID         string
	log        *slog.Logger
	onSnapshot func(chat.Snapshot)
	onError    func(error)

	mu       sync.Mutex
	latest   chat.Snapshot
	hasValue bool
	failure  error
	closed   bool

	signal    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewSubscription(log *slog.Logger, onSnapshot func(chat.Snapshot), onError func(error)) *Subscription {
	s := &Subscription{
		ID:         uuid.NewString(),
		log:        log,
		onSnapshot: onSnapshot,
		onError:    onError,
		signal:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go s.loop()
	return s
}

// Deliver replaces the pending snapshot and wakes the subscriber up.
func (s *Subscription) Deliver(snapshot chat.Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.latest = snapshot
	s.hasValue = true
	s.mu.Unlock()
	s.wake()
}

// Fail reports a transport failure. Only the first failure is kept.
func (s *Subscription) Fail(err error) {
	s.mu.Lock()
	if s.closed || s.failure != nil {
		s.mu.Unlock()
		return
	}
	s.failure = err
	s.mu.Unlock()
	s.wake()
}

// Close stops every future callback. Safe to call several times.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.latest = nil
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscription) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		snapshot, hasValue := s.latest, s.hasValue
		failure := s.failure
		s.latest, s.hasValue = nil, false
		s.mu.Unlock()

		if hasValue {
			s.invoke(func() { s.onSnapshot(snapshot) })
		}
		if failure != nil {
			if s.onError != nil {
				s.invoke(func() { s.onError(failure) })
			}
			// A failed subscription is over, the subscriber has to subscribe again
			s.Close()
			return
		}
	}
}

// invoke shields the mailbox goroutine from a panicking subscriber.
func (s *Subscription) invoke(callback func()) {
	if s.Closed() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Subscriber callback panicked", "subscription_id", s.ID, "panic", r)
		}
	}()
	callback()
}
