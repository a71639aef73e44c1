package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScoreTierPremiumRequiresHighPointsAcrossDimensions(t *testing.T) {
	points, tier := ScoreTier(Capabilities{VRAMGB: 24, ModelParamsB: 70, TokensPerSecond: 50})
	assert.Equal(t, 25+50+25, points)
	assert.Equal(t, TierPremium, tier)
}

func TestScoreTierStandardForMidRangeCapabilities(t *testing.T) {
	_, tier := ScoreTier(Capabilities{VRAMGB: 12, ModelParamsB: 7, TokensPerSecond: 10})
	assert.Equal(t, TierStandard, tier)
}

func TestScoreTierBasicForLowCapabilities(t *testing.T) {
	_, tier := ScoreTier(Capabilities{VRAMGB: 4, ModelParamsB: 1, TokensPerSecond: 2})
	assert.Equal(t, TierBasic, tier)
}

func TestScoreTierBoundaryAt61IsPremium(t *testing.T) {
	// 16GB VRAM (20) + 13B params (25) + 20 tok/s (15) = 60 -> Standard
	points, tier := ScoreTier(Capabilities{VRAMGB: 16, ModelParamsB: 13, TokensPerSecond: 20})
	assert.Equal(t, 60, points)
	assert.Equal(t, TierStandard, tier)

	// Bump VRAM to 24GB (25) to cross the 61-point premium threshold.
	points, tier = ScoreTier(Capabilities{VRAMGB: 24, ModelParamsB: 13, TokensPerSecond: 20})
	assert.Equal(t, 65, points)
	assert.Equal(t, TierPremium, tier)
}

func TestClampReputationEnforcesFloor(t *testing.T) {
	assert.Equal(t, float64(MinReputation), ClampReputation(5))
	assert.Equal(t, float64(50), ClampReputation(50))
}

func TestConnectedNodeIsOnlineWithinWindow(t *testing.T) {
	cn := &ConnectedNode{LastHeartbeat: time.Now().Add(-30 * time.Second)}
	assert.True(t, cn.IsOnline(time.Now()))
}

func TestConnectedNodeIsOfflineAfterWindow(t *testing.T) {
	cn := &ConnectedNode{LastHeartbeat: time.Now().Add(-91 * time.Second)}
	assert.False(t, cn.IsOnline(time.Now()))
}
