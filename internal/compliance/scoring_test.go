package compliance

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failedCheck(severity Severity, remediation ...string) ComplianceCheck {
	return ComplianceCheck{
		CheckID:       uuid.New(),
		RequirementID: "TEST_REQ",
		Framework:     "TEST",
		Passed:        false,
		Severity:      severity,
		Remediation:   remediation,
		Timestamp:     time.Now(),
	}
}

func passedCheck() ComplianceCheck {
	return ComplianceCheck{
		CheckID:       uuid.New(),
		RequirementID: "TEST_REQ",
		Framework:     "TEST",
		Passed:        true,
		Severity:      SeverityInfo,
		Timestamp:     time.Now(),
	}
}

func TestScoreSaturatesAtZero(t *testing.T) {
	se := NewScoringEngine(DefaultPolicyConfig())

	var checks []ComplianceCheck
	for i := 0; i < 10; i++ {
		checks = append(checks, failedCheck(SeverityCritical))
	}
	score, compliant := se.Score(checks)
	assert.Equal(t, 0, score)
	assert.False(t, compliant)
}

func TestScoreBoundsProperty(t *testing.T) {
	se := NewScoringEngine(DefaultPolicyConfig())
	severities := []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		n := rng.Intn(20)
		checks := make([]ComplianceCheck, 0, n)
		blockingFailure := false
		for j := 0; j < n; j++ {
			if rng.Intn(2) == 0 {
				checks = append(checks, passedCheck())
				continue
			}
			sev := severities[rng.Intn(len(severities))]
			if sev.Blocking() {
				blockingFailure = true
			}
			checks = append(checks, failedCheck(sev))
		}

		score, compliant := se.Score(checks)
		require.GreaterOrEqual(t, score, 0)
		require.LessOrEqual(t, score, 100)
		require.Equal(t, !blockingFailure, compliant,
			"compliance verdict must track blocking failures exactly")
	}
}

func TestScoreWeights(t *testing.T) {
	se := NewScoringEngine(DefaultPolicyConfig())

	tests := []struct {
		name      string
		checks    []ComplianceCheck
		wantScore int
		wantOK    bool
	}{
		{"no checks", nil, 100, true},
		{"all passed", []ComplianceCheck{passedCheck(), passedCheck()}, 100, true},
		{"one critical", []ComplianceCheck{failedCheck(SeverityCritical)}, 70, false},
		{"one error", []ComplianceCheck{failedCheck(SeverityError)}, 80, false},
		{"one warning", []ComplianceCheck{failedCheck(SeverityWarning)}, 90, true},
		{"one info", []ComplianceCheck{failedCheck(SeverityInfo)}, 95, true},
		{"warnings never block", []ComplianceCheck{
			failedCheck(SeverityWarning), failedCheck(SeverityWarning), failedCheck(SeverityInfo),
		}, 75, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := se.Score(tt.checks)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestRecommendations(t *testing.T) {
	se := NewScoringEngine(DefaultPolicyConfig())

	t.Run("all passed", func(t *testing.T) {
		recs := se.Recommendations([]ComplianceCheck{passedCheck()})
		assert.Equal(t, []string{"All compliance checks passed"}, recs)
	})

	t.Run("critical failure recommends blocking", func(t *testing.T) {
		recs := se.Recommendations([]ComplianceCheck{failedCheck(SeverityCritical)})
		assert.Contains(t, recs, "Block transaction until critical compliance failures are resolved")
	})

	t.Run("many failures recommend comprehensive review", func(t *testing.T) {
		checks := []ComplianceCheck{
			failedCheck(SeverityWarning), failedCheck(SeverityWarning),
			failedCheck(SeverityWarning), failedCheck(SeverityWarning),
		}
		recs := se.Recommendations(checks)
		assert.Contains(t, recs, "Schedule a comprehensive compliance review for this investor")
	})

	t.Run("kyc and aml failures get targeted guidance", func(t *testing.T) {
		kyc := failedCheck(SeverityCritical)
		kyc.RequirementID = "SEC_KYC_001"
		aml := failedCheck(SeverityError)
		aml.RequirementID = "FINCEN_AML_001"
		recs := se.Recommendations([]ComplianceCheck{kyc, aml})
		assert.Contains(t, recs, "Direct the investor to complete KYC verification")
		assert.Contains(t, recs, "Escalate to the AML team for enhanced screening")
	})
}

func TestRequiredActionsOnlyBlockingSeverities(t *testing.T) {
	se := NewScoringEngine(DefaultPolicyConfig())

	checks := []ComplianceCheck{
		failedCheck(SeverityCritical, "resolve sanctions findings"),
		failedCheck(SeverityError, "obtain accreditation"),
		failedCheck(SeverityWarning, "informational only"),
		failedCheck(SeverityInfo, "informational only"),
	}
	actions := se.RequiredActions(checks)
	assert.Equal(t, []string{"resolve sanctions findings", "obtain accreditation"}, actions)
}

func TestEstimateCompletionStepFunction(t *testing.T) {
	se := NewScoringEngine(DefaultPolicyConfig())

	mk := func(failed int) []ComplianceCheck {
		checks := make([]ComplianceCheck, 0, failed)
		for i := 0; i < failed; i++ {
			checks = append(checks, failedCheck(SeverityWarning))
		}
		return checks
	}

	assert.Equal(t, time.Duration(0), se.EstimateCompletion(nil))
	assert.Equal(t, 24*time.Hour, se.EstimateCompletion(mk(1)))
	assert.Equal(t, 24*time.Hour, se.EstimateCompletion(mk(2)))
	assert.Equal(t, 3*24*time.Hour, se.EstimateCompletion(mk(3)))
	assert.Equal(t, 3*24*time.Hour, se.EstimateCompletion(mk(5)))
	assert.Equal(t, 7*24*time.Hour, se.EstimateCompletion(mk(6)))
	assert.Equal(t, 7*24*time.Hour, se.EstimateCompletion(mk(10)))
	assert.Equal(t, 14*24*time.Hour, se.EstimateCompletion(mk(11)))
}
