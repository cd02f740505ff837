package domain

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregator_Tallies(t *testing.T) {
	agg := NewAggregator()

	agg.RecordDiscovered()
	agg.RecordDiscovered()
	agg.RecordDiscovered()
	agg.RecordCompleted(Outcome{Kind: OutcomeSaved, Name: "a", Bytes: 10})
	agg.RecordCompleted(Outcome{Kind: OutcomeSkipped, Name: "b"})
	agg.RecordCompleted(Outcome{Kind: OutcomeFailed, Name: "c", Err: ErrSizeMismatch})
	agg.RecordLocatorFailure(Outcome{Name: "d", Err: ErrNoImageData})

	stats := agg.Snapshot()
	assert.Equal(t, 3, stats.Discovered)
	assert.Equal(t, 3, stats.Completed)
	assert.Equal(t, 1, stats.Saved)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, int64(10), stats.Bytes)
	if assert.Len(t, stats.Failures, 2) {
		assert.Equal(t, "c", stats.Failures[0].Name)
		assert.Equal(t, "d", stats.Failures[1].Name)
		assert.Equal(t, OutcomeFailed, stats.Failures[1].Kind)
	}
	assert.False(t, agg.Succeeded())
}

func TestAggregator_SnapshotIsCopy(t *testing.T) {
	agg := NewAggregator()
	agg.RecordLocatorFailure(Outcome{Name: "a", Err: errors.New("boom")})

	stats := agg.Snapshot()
	stats.Failures[0].Name = "changed"

	assert.Equal(t, "a", agg.Snapshot().Failures[0].Name)
}

func TestAggregator_Concurrent(t *testing.T) {
	agg := NewAggregator()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.RecordDiscovered()
			kind := OutcomeSaved
			if i%10 == 0 {
				kind = OutcomeFailed
			}
			agg.RecordCompleted(Outcome{Kind: kind})
		}(i)
	}
	wg.Wait()

	stats := agg.Snapshot()
	assert.Equal(t, 100, stats.Discovered)
	assert.Equal(t, stats.Discovered, stats.Completed)
	assert.Len(t, stats.Failures, 10)
	assert.True(t, NewAggregator().Succeeded())
}
