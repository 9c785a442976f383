package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStats_LoadScore(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(s *Stats)
		expected float64
	}{
		{
			name:     "idle agent has zero load",
			setup:    func(s *Stats) {},
			expected: 0,
		},
		{
			name: "one of two slots busy",
			setup: func(s *Stats) {
				s.Begin()
			},
			expected: 0.7 * 0.5, // utilization only, no finishes yet
		},
		{
			name: "failure rate contributes",
			setup: func(s *Stats) {
				s.Begin()
				s.Finish(false)
				s.Begin()
				s.Finish(true)
			},
			expected: 0.3 * 0.5, // idle, 1 of 2 failed
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStats(2, 0.9)
			tt.setup(s)
			assert.InDelta(t, tt.expected, s.LoadScore(), 1e-9)
		})
	}
}

func TestStats_CompletionRate(t *testing.T) {
	s := NewStats(2, 0.9)
	assert.Equal(t, 1.0, s.CompletionRate(), "no history means perfect rate")

	s.Begin()
	s.Finish(true)
	s.Begin()
	s.Finish(true)
	s.Begin()
	s.Finish(false)
	assert.InDelta(t, 2.0/3.0, s.CompletionRate(), 1e-9)
}

func TestStats_CanAccept(t *testing.T) {
	s := NewStats(1, 0.9)
	assert.True(t, s.CanAccept())

	s.Begin()
	assert.False(t, s.CanAccept(), "concurrency cap reached")

	s.Finish(true)
	assert.True(t, s.CanAccept())
}

func TestPool_RegisterRejectsDuplicates(t *testing.T) {
	pool := NewPool(zap.NewNop())
	require.NoError(t, pool.Register(NewSimAgent("a-1", TypeAnalysis, SimConfig{})))
	assert.Error(t, pool.Register(NewSimAgent("a-1", TypeAnalysis, SimConfig{})))
	assert.Equal(t, 1, pool.Size())
}

func TestPool_CandidatesSortedAndFiltered(t *testing.T) {
	pool := NewPool(zap.NewNop())
	require.NoError(t, pool.Register(NewSimAgent("b", TypeAnalysis, SimConfig{})))
	require.NoError(t, pool.Register(NewSimAgent("a", TypeAnalysis, SimConfig{})))
	require.NoError(t, pool.Register(NewSimAgent("c", TypeReporting, SimConfig{})))

	got := pool.Candidates(TypeAnalysis)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID())
	assert.Equal(t, "b", got[1].ID())

	// Reserved agents drop out of the candidate set.
	require.True(t, pool.Reserve("a", "task-1"))
	got = pool.Candidates(TypeAnalysis)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID())

	// Untyped query matches everything unreserved.
	got = pool.Candidates("")
	assert.Len(t, got, 2)
}

func TestPool_ReservationIsExclusive(t *testing.T) {
	pool := NewPool(zap.NewNop())
	require.NoError(t, pool.Register(NewSimAgent("a", TypeAnalysis, SimConfig{})))

	const goroutines = 32
	var wins sync.Map
	var wg sync.WaitGroup
	won := make(chan string, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if pool.Reserve("a", "holder") {
				wins.Store(n, true)
				won <- "a"
			}
		}(i)
	}
	wg.Wait()
	close(won)

	count := 0
	for range won {
		count++
	}
	assert.Equal(t, 1, count, "exactly one goroutine may hold the reservation")
	assert.True(t, pool.IsReserved("a"))

	pool.Release("a")
	pool.Release("a") // idempotent
	assert.False(t, pool.IsReserved("a"))
	assert.True(t, pool.Reserve("a", "next"))
}

func TestPool_ReserveUnknownAgent(t *testing.T) {
	pool := NewPool(zap.NewNop())
	assert.False(t, pool.Reserve("ghost", "task-1"))
}

func TestSimAgent_ExecuteProducesTypedMarker(t *testing.T) {
	a := NewSimAgent("an-1", TypeAnalysis, SimConfig{WorkDelay: time.Millisecond})
	out, err := a.Execute(context.Background(), "inspect the data")
	require.NoError(t, err)
	assert.Contains(t, out, "[analysis]")
	assert.Contains(t, out, "inspect the data")
}

func TestSimAgent_ExecuteHonorsContext(t *testing.T) {
	a := NewSimAgent("an-1", TypeAnalysis, SimConfig{WorkDelay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.Execute(ctx, "slow work")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, a.Active(), "execution slot released on cancellation")
}
