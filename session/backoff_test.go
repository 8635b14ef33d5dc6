package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	testCases := []struct {
		name       string
		retryCount int
		expected   time.Duration
	}{
		{name: "first attempt", retryCount: 0, expected: time.Second},
		{name: "second attempt", retryCount: 1, expected: 2 * time.Second},
		{name: "third attempt", retryCount: 2, expected: 4 * time.Second},
		{name: "fifth attempt", retryCount: 4, expected: 16 * time.Second},
		{name: "capped", retryCount: 5, expected: 30 * time.Second},
		{name: "huge count does not overflow", retryCount: 200, expected: 30 * time.Second},
		{name: "negative count", retryCount: -3, expected: time.Second},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Backoff(tc.retryCount, time.Second, 30*time.Second))
		})
	}
}

func TestBackoff_Is_Monotonic(t *testing.T) {
	req := require.New(t)
	previous := time.Duration(0)
	for n := range 64 {
		delay := Backoff(n, 250*time.Millisecond, time.Minute)
		req.GreaterOrEqual(delay, previous)
		req.LessOrEqual(delay, time.Minute)
		previous = delay
	}
}
