package calculator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHighWaterTracker_SeedsAndTracks(t *testing.T) {
	tracker := NewHighWaterTracker()

	require.Equal(t, 150.0, tracker.Observe("AAPL", 150.0))
	require.Equal(t, 160.0, tracker.Observe("AAPL", 160.0))
	require.Equal(t, 160.0, tracker.Observe("AAPL", 155.0))
}

func TestHighWaterTracker_ObserveIdempotent(t *testing.T) {
	tracker := NewHighWaterTracker()

	tracker.Observe("AAPL", 150.0)
	require.Equal(t, 150.0, tracker.Observe("AAPL", 150.0))

	mark, ok := tracker.Get("AAPL")
	require.True(t, ok)
	require.Equal(t, 150.0, mark)
}

func TestHighWaterTracker_GetUntracked(t *testing.T) {
	tracker := NewHighWaterTracker()

	_, ok := tracker.Get("MSFT")
	require.False(t, ok)
}

func TestHighWaterTracker_ResetSingle(t *testing.T) {
	tracker := NewHighWaterTracker()
	tracker.Observe("AAPL", 150.0)
	tracker.Observe("GOOGL", 200.0)

	tracker.Reset("AAPL")

	_, ok := tracker.Get("AAPL")
	require.False(t, ok)

	mark, ok := tracker.Get("GOOGL")
	require.True(t, ok)
	require.Equal(t, 200.0, mark)
}

func TestHighWaterTracker_ResetAll(t *testing.T) {
	tracker := NewHighWaterTracker()
	tracker.Observe("AAPL", 150.0)
	tracker.Observe("GOOGL", 200.0)

	tracker.Reset()

	_, ok := tracker.Get("AAPL")
	require.False(t, ok)
	_, ok = tracker.Get("GOOGL")
	require.False(t, ok)

	// A cleared symbol reseeds from the next observation, even a lower one.
	require.Equal(t, 120.0, tracker.Observe("AAPL", 120.0))
}

func TestHighWaterTracker_ConcurrentObserve(t *testing.T) {
	tracker := NewHighWaterTracker()

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(price float64) {
			defer wg.Done()
			tracker.Observe("AAPL", price)
		}(float64(i))
	}
	wg.Wait()

	mark, ok := tracker.Get("AAPL")
	require.True(t, ok)
	require.Equal(t, 100.0, mark)
}
