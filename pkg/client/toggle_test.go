package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverSays(active bool) Mutation {
	return func(context.Context) (bool, error) { return active, nil }
}

func TestToggle_FlipConfirmed(t *testing.T) {
	var invalidated int
	tg := NewToggle(State{Active: false, Count: 3}, Invalidate(func() { invalidated++ }))

	got, err := tg.Flip(context.Background(), serverSays(true))
	require.NoError(t, err)
	assert.Equal(t, State{Active: true, Count: 4}, got)
	assert.Equal(t, got, tg.State())
	assert.Equal(t, 1, invalidated)

	got, err = tg.Flip(context.Background(), serverSays(false))
	require.NoError(t, err)
	assert.Equal(t, State{Active: false, Count: 3}, got)
	assert.Equal(t, 2, invalidated)
}

func TestToggle_OptimisticStateVisibleDuringCall(t *testing.T) {
	tg := NewToggle(State{Active: false, Count: 0})

	var during State
	_, err := tg.Flip(context.Background(), func(context.Context) (bool, error) {
		during = tg.State()
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, State{Active: true, Count: 1}, during)
}

func TestToggle_ServerDisagrees(t *testing.T) {
	tg := NewToggle(State{Active: false, Count: 5})

	// The row already existed: the toggle removed it.
	got, err := tg.Flip(context.Background(), serverSays(false))
	require.NoError(t, err)
	assert.Equal(t, State{Active: false, Count: 5}, got)
}

func TestToggle_RollbackOnError(t *testing.T) {
	var changes []State
	var invalidated bool
	tg := NewToggle(State{Active: true, Count: 2},
		OnChange(func(s State) { changes = append(changes, s) }),
		Invalidate(func() { invalidated = true }),
	)

	boom := errors.New("boom")
	got, err := tg.Flip(context.Background(), func(context.Context) (bool, error) { return false, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, State{Active: true, Count: 2}, got)
	assert.Equal(t, got, tg.State())
	assert.False(t, invalidated)
	assert.Equal(t, []State{{Active: false, Count: 1}, {Active: true, Count: 2}}, changes)
}

func TestToggle_CanceledContextDoesNotFlip(t *testing.T) {
	tg := NewToggle(State{Active: false, Count: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := tg.Flip(ctx, func(context.Context) (bool, error) {
		called = true
		return true, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, State{Active: false, Count: 1}, tg.State())
}

func TestToggle_CountNeverNegative(t *testing.T) {
	tg := NewToggle(State{Active: true, Count: 0})

	got, err := tg.Flip(context.Background(), serverSays(false))
	require.NoError(t, err)
	assert.Equal(t, State{Active: false, Count: 0}, got)
}

func TestToggle_ConcurrentFlipsAreSerialized(t *testing.T) {
	tg := NewToggle(State{})

	// Fake server holding the authoritative row. Flip serialization is the
	// only thing guarding it.
	server := false
	var inFlight, overlaps atomic.Int32
	mutate := func(context.Context) (bool, error) {
		if inFlight.Add(1) > 1 {
			overlaps.Add(1)
		}
		defer inFlight.Add(-1)
		time.Sleep(time.Millisecond)
		server = !server
		return server, nil
	}

	const flips = 25
	var wg sync.WaitGroup
	for i := 0; i < flips; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tg.Flip(context.Background(), mutate)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Zero(t, overlaps.Load())
	assert.Equal(t, State{Active: true, Count: 1}, tg.State())
}

func TestToggle_Reset(t *testing.T) {
	var changes int
	tg := NewToggle(State{}, OnChange(func(State) { changes++ }))
	tg.Reset(State{Active: true, Count: 10})

	assert.Equal(t, State{Active: true, Count: 10}, tg.State())
	assert.Equal(t, 1, changes)
}
