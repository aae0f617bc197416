package compliance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCheck(t *testing.T, checks []ComplianceCheck, id string) ComplianceCheck {
	t.Helper()
	for _, c := range checks {
		if c.RequirementID == id {
			return c
		}
	}
	t.Fatalf("check %s not found", id)
	return ComplianceCheck{}
}

func TestHeuristicsNeverBlock(t *testing.T) {
	h := NewRiskHeuristics(DefaultPolicyConfig())

	p := testProfile()
	p.InvestorType = InvestorTypeRetail
	p.ComplianceScore = 10
	p.LastUpdated = time.Now().Add(-120 * 24 * time.Hour)

	checks := h.Run(p, decimal.NewFromInt(5_000_000))
	require.Len(t, checks, 3)
	for _, c := range checks {
		assert.False(t, c.Passed)
		assert.Equal(t, SeverityWarning, c.Severity, "heuristics must never produce blocking severities")
	}
}

func TestHighValueHeuristic(t *testing.T) {
	h := NewRiskHeuristics(DefaultPolicyConfig())

	t.Run("retail above threshold flagged", func(t *testing.T) {
		p := testProfile()
		p.InvestorType = InvestorTypeRetail
		checks := h.Run(p, decimal.NewFromInt(2_000_000))
		assert.False(t, findCheck(t, checks, "RISK_HIGH_VALUE").Passed)
	})

	t.Run("institutional above threshold not flagged", func(t *testing.T) {
		p := testProfile()
		p.InvestorType = InvestorTypeInstitutional
		checks := h.Run(p, decimal.NewFromInt(2_000_000))
		assert.True(t, findCheck(t, checks, "RISK_HIGH_VALUE").Passed)
	})

	t.Run("accredited above threshold not flagged", func(t *testing.T) {
		checks := h.Run(testProfile(), decimal.NewFromInt(2_000_000))
		assert.True(t, findCheck(t, checks, "RISK_HIGH_VALUE").Passed)
	})
}

func TestLowScoreHeuristic(t *testing.T) {
	h := NewRiskHeuristics(DefaultPolicyConfig())

	p := testProfile()
	p.ComplianceScore = 69
	checks := h.Run(p, decimal.NewFromInt(100))
	assert.False(t, findCheck(t, checks, "RISK_LOW_SCORE").Passed)

	p.ComplianceScore = 70
	checks = h.Run(p, decimal.NewFromInt(100))
	assert.True(t, findCheck(t, checks, "RISK_LOW_SCORE").Passed)
}

func TestHeuristicTimestampsUseClock(t *testing.T) {
	h := NewRiskHeuristics(DefaultPolicyConfig())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	p := testProfile()
	p.LastUpdated = fixed.Add(-time.Hour)
	for _, c := range h.Run(p, decimal.NewFromInt(100)) {
		assert.Equal(t, fixed, c.Timestamp)
	}
}

func TestStaleProfileHeuristic(t *testing.T) {
	h := NewRiskHeuristics(DefaultPolicyConfig())

	p := testProfile()
	p.LastUpdated = time.Now().Add(-91 * 24 * time.Hour)
	checks := h.Run(p, decimal.NewFromInt(100))
	assert.False(t, findCheck(t, checks, "RISK_STALE_PROFILE").Passed)
}
