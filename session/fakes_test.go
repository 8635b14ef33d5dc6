package session

import (
	"club-chat/contract"
	"club-chat/domain/chat"
	"context"
	"sync"
	"time"
)

type fakeSubscription struct {
	clubID       chat.ClubID
	onSnapshot   func(chat.Snapshot)
	onError      func(error)
	unsubscribed int
}

// fakeStore records subscriptions, callbacks are triggered by the test.
type fakeStore struct {
	mu            sync.Mutex
	subscriptions []*fakeSubscription
	subscribeErr  error
	isMember      func(userID string) (bool, error)
	memberChecks  int
	append        func(text string) error
	appended      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		isMember: func(string) (bool, error) { return true, nil },
		append:   func(string) error { return nil },
	}
}

func (f *fakeStore) Subscribe(clubID chat.ClubID, onSnapshot func(chat.Snapshot), onError func(error)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := &fakeSubscription{clubID: clubID, onSnapshot: onSnapshot, onError: onError}
	f.subscriptions = append(f.subscriptions, sub)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		sub.unsubscribed++
	}, nil
}

func (f *fakeStore) Append(_ context.Context, _ chat.ClubID, _ chat.Sender, text string) error {
	f.mu.Lock()
	appendFunc := f.append
	f.mu.Unlock()
	err := appendFunc(text)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		f.appended = append(f.appended, text)
	}
	return err
}

func (f *fakeStore) IsMember(_ context.Context, _ chat.ClubID, userID string) (bool, error) {
	f.mu.Lock()
	f.memberChecks++
	check := f.isMember
	f.mu.Unlock()
	return check(userID)
}

func (f *fakeStore) subscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscriptions)
}

func (f *fakeStore) subscription(i int) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscriptions[i]
}

func (f *fakeStore) last() *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscriptions[len(f.subscriptions)-1]
}

func (f *fakeStore) unsubscribed(i int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscriptions[i].unsubscribed
}

func (f *fakeStore) checks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memberChecks
}

func (f *fakeStore) appendedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.appended...)
}

func (f *fakeStore) setAppend(fn func(text string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.append = fn
}

func (f *fakeStore) setIsMember(fn func(userID string) (bool, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isMember = fn
}

type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeScheduler never fires on its own.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) contract.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer := &fakeTimer{delay: d, fn: f}
	s.timers = append(s.timers, timer)
	return timer
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[len(s.timers)-1]
}

func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	delays := make([]time.Duration, len(s.timers))
	for i, t := range s.timers {
		delays[i] = t.delay
	}
	return delays
}

func (s *fakeScheduler) stopped(i int) bool {
	s.mu.Lock()
	timer := s.timers[i]
	s.mu.Unlock()
	return timer.isStopped()
}

func (s *fakeScheduler) fireLast() {
	timer := s.last()
	timer.fn()
}
