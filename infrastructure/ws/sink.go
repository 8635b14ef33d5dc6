package ws

import (
	"club-chat/session"
	"context"
	"sync"
)

// viewSink keeps only the latest view so a slow socket never stalls the
// session event loop. Intermediate views are coalesced.
type viewSink struct {
	mu     sync.Mutex
	latest *session.View
	ready  chan struct{}
}

func newViewSink() *viewSink {
	return &viewSink{ready: make(chan struct{}, 1)}
}

func (s *viewSink) Consume(_ context.Context, view session.View) error {
	s.mu.Lock()
	s.latest = &view
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return nil
}

// take returns the pending view, if any, and clears it.
func (s *viewSink) take() (session.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return session.View{}, false
	}
	view := *s.latest
	s.latest = nil
	return view, true
}
