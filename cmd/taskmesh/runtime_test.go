package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/internal/allocate"
)

func TestLoadOracle_PicksLeastLoaded(t *testing.T) {
	req := allocate.Request{
		Candidates: []allocate.Candidate{
			{AgentID: "a", Load: 0.8},
			{AgentID: "b", Load: 0.1},
			{AgentID: "c", Load: 0.5},
		},
	}

	d, err := loadOracle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, d.SelectedIndex)
	assert.InDelta(t, 0.5+0.35, d.Confidence, 1e-9)
	assert.NotEmpty(t, d.Rationale)
}

func TestLoadOracle_NoCandidates(t *testing.T) {
	_, err := loadOracle(context.Background(), allocate.Request{})
	assert.Error(t, err)
}
