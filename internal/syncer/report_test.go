package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport_Aggregates(t *testing.T) {
	r := &Report{Regions: []RegionResult{
		{Region: "A", State: StateDone, Fetched: 5, Inserted: 2, Updated: 3},
		{Region: "B", State: StateFailed, Error: "timeout"},
		{Region: "C", State: StateDone, Fetched: 1, Inserted: 1},
		{Region: "D", State: StateFailed, Fetched: 4, Error: "locked"},
	}}

	assert.Equal(t, 2, r.Succeeded())
	assert.Equal(t, 2, r.Failed())
	assert.Equal(t, 10, r.Fetched())
	assert.Equal(t, 3, r.Inserted())
	assert.Equal(t, 3, r.Updated())
	assert.Equal(t, []string{"B", "D"}, r.FailedRegions())
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateFetching.Terminal())
	assert.False(t, StateReconciling.Terminal())
}
