package runtime

import (
	"club-chat/contract"
	"time"
)

// SystemScheduler runs callbacks on the wall clock.
type SystemScheduler struct{}

func (SystemScheduler) AfterFunc(d time.Duration, f func()) contract.Timer {
	return time.AfterFunc(d, f)
}
