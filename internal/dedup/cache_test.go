package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0     = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)
	keyCW  = domain.DedupKey{Callsign: "W1XYZ", Band: "20m", Mode: domain.ModeCW}
	keySSB = domain.DedupKey{Callsign: "W1XYZ", Band: "20m", Mode: domain.ModeSSB}
)

func TestCache_SuppressesWithinWindow(t *testing.T) {
	c := New(0)
	window := 15 * time.Minute

	assert.True(t, c.ShouldAlert(keyCW, t0, window))
	assert.False(t, c.ShouldAlert(keyCW, t0.Add(30*time.Second), window))
	assert.False(t, c.ShouldAlert(keyCW, t0.Add(window-time.Nanosecond), window))
	assert.True(t, c.ShouldAlert(keyCW, t0.Add(window), window), "window boundary allows a new alert")
}

func TestCache_RepeatAfterSixteenMinutes(t *testing.T) {
	c := New(0)
	window := 15 * time.Minute

	require.True(t, c.ShouldAlert(keyCW, t0, window))
	require.False(t, c.ShouldAlert(keyCW, t0.Add(30*time.Second), window))
	assert.True(t, c.ShouldAlert(keyCW, t0.Add(16*time.Minute), window))
}

func TestCache_SuppressionDoesNotExtendWindow(t *testing.T) {
	c := New(0)
	window := 10 * time.Minute

	require.True(t, c.ShouldAlert(keyCW, t0, window))
	// A steady trickle of sightings must not push the next alert out.
	for i := 1; i < 10; i++ {
		require.False(t, c.ShouldAlert(keyCW, t0.Add(time.Duration(i)*time.Minute), window))
	}
	assert.True(t, c.ShouldAlert(keyCW, t0.Add(10*time.Minute), window))
}

func TestCache_KeysAreIndependent(t *testing.T) {
	c := New(0)
	window := time.Hour

	assert.True(t, c.ShouldAlert(keyCW, t0, window))
	assert.True(t, c.ShouldAlert(keySSB, t0, window))
	assert.False(t, c.ShouldAlert(keyCW, t0.Add(time.Minute), window))
	assert.Equal(t, 2, c.Len())
}

func TestCache_EvictsStaleEntries(t *testing.T) {
	c := New(2)
	window := time.Minute

	for i := range 100 {
		key := domain.DedupKey{Callsign: fmt.Sprintf("W%dABC", i), Band: "20m", Mode: domain.ModeCW}
		require.True(t, c.ShouldAlert(key, t0.Add(time.Duration(i)*time.Second), window))
	}
	assert.Equal(t, 100, c.Len())

	// Entries alerted before now-2m are purged by the next call.
	c.ShouldAlert(keyCW, t0.Add(2*time.Minute+50*time.Second), window)
	assert.Equal(t, 51, c.Len(), "keys from t0+50s..t0+99s survive plus the new key")

	c.ShouldAlert(keySSB, t0.Add(time.Hour), window)
	assert.Equal(t, 1, c.Len())
}

func TestCache_EvictionKeepsDecisionsCorrect(t *testing.T) {
	c := New(1)
	window := time.Minute

	require.True(t, c.ShouldAlert(keyCW, t0, window))
	// keyCW is evicted here (older than one window) and alerting again is allowed anyway.
	require.True(t, c.ShouldAlert(keySSB, t0.Add(90*time.Second), window))
	assert.True(t, c.ShouldAlert(keyCW, t0.Add(91*time.Second), window))
}

func TestCache_MovesReAlertedKeyToFront(t *testing.T) {
	c := New(2)
	window := time.Minute

	require.True(t, c.ShouldAlert(keyCW, t0, window))
	require.True(t, c.ShouldAlert(keySSB, t0.Add(10*time.Second), window))
	require.True(t, c.ShouldAlert(keyCW, t0.Add(70*time.Second), window))

	// keySSB (t0+10s) is now the oldest and goes first.
	c.ShouldAlert(domain.DedupKey{Callsign: "K1ABC"}, t0.Add(2*time.Minute+20*time.Second), window)
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.ShouldAlert(keyCW, t0.Add(100*time.Second), window), "keyCW survived and is still inside its window")
}

func TestCache_ConcurrentUse(t *testing.T) {
	c := New(0)
	window := time.Hour

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.ShouldAlert(keyCW, t0.Add(time.Duration(i)*time.Millisecond), window) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, allowed)
	assert.Equal(t, 1, c.Len())
}
