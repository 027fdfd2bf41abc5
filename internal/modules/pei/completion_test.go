package pei

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckCompletionPendingAndComplete(t *testing.T) {
	all := sampleResponses(3)
	for total := 0; total <= 3; total++ {
		for k := 0; k <= total; k++ {
			got := CheckCompletion(total, all[:k])
			assert.Equal(t, total-k, got.Pending, "total=%d k=%d", total, k)
			assert.Equal(t, k == total, got.IsComplete, "total=%d k=%d", total, k)
			assert.Equal(t, k, got.Completed)
			if got.IsComplete {
				assert.Equal(t, CompletionComplete, got.Status)
			} else {
				assert.Equal(t, CompletionInProgress, got.Status)
			}
		}
	}
}

func TestCheckCompletionZeroTotal(t *testing.T) {
	got := CheckCompletion(0, nil)
	assert.True(t, got.IsComplete)
	assert.Equal(t, 0.0, got.Percentage)
	assert.Equal(t, 0, got.Pending)

	got = CheckCompletion(0, sampleResponses(1))
	assert.False(t, got.IsComplete)
	assert.Equal(t, 0.0, got.Percentage)
}

func TestCheckCompletionPercentageRounding(t *testing.T) {
	got := CheckCompletionCount(3, 1)
	assert.Equal(t, 33.3, got.Percentage)
	got = CheckCompletionCount(3, 2)
	assert.Equal(t, 66.7, got.Percentage)
	got = CheckCompletionCount(2, 5)
	assert.Equal(t, 100.0, got.Percentage)
	assert.Equal(t, 0, got.Pending)
	assert.True(t, got.IsComplete)
}
