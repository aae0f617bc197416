package compliance

import (
	"strings"
	"time"
)

// ScoringEngine aggregates individual checks into the overall score,
// verdict, recommendations, required actions and completion estimate.
type ScoringEngine struct {
	cfg PolicyConfig
}

// NewScoringEngine creates a scoring engine with the given weights.
func NewScoringEngine(cfg PolicyConfig) *ScoringEngine {
	return &ScoringEngine{cfg: cfg}
}

// Score starts at 100 and subtracts the severity weight for each failed
// check, saturating at 0. The result is compliant iff no failed check
// carries Critical or Error severity.
func (se *ScoringEngine) Score(checks []ComplianceCheck) (int, bool) {
	score := 100
	compliant := true
	for _, c := range checks {
		if c.Passed {
			continue
		}
		score -= se.cfg.Weights.For(c.Severity)
		if c.Severity.Blocking() {
			compliant = false
		}
	}
	if score < 0 {
		score = 0
	}
	return score, compliant
}

// Recommendations emits fixed guidance strings keyed by the failure
// patterns present in the check list.
func (se *ScoringEngine) Recommendations(checks []ComplianceCheck) []string {
	var (
		failed      int
		anyCritical bool
		kycFailed   bool
		amlFailed   bool
	)
	for _, c := range checks {
		if c.Passed {
			continue
		}
		failed++
		if c.Severity == SeverityCritical {
			anyCritical = true
		}
		id := strings.ToUpper(c.RequirementID)
		if strings.Contains(id, "KYC") {
			kycFailed = true
		}
		if strings.Contains(id, "AML") {
			amlFailed = true
		}
	}

	if failed == 0 {
		return []string{"All compliance checks passed"}
	}

	var recs []string
	if anyCritical {
		recs = append(recs, "Block transaction until critical compliance failures are resolved")
	}
	if failed > 3 {
		recs = append(recs, "Schedule a comprehensive compliance review for this investor")
	}
	if kycFailed {
		recs = append(recs, "Direct the investor to complete KYC verification")
	}
	if amlFailed {
		recs = append(recs, "Escalate to the AML team for enhanced screening")
	}
	if len(recs) == 0 {
		recs = append(recs, "Address the failed compliance checks before proceeding")
	}
	return recs
}

// RequiredActions concatenates remediation steps from every failed check of
// blocking severity. Warning and Info remediation stays informational.
func (se *ScoringEngine) RequiredActions(checks []ComplianceCheck) []string {
	var actions []string
	for _, c := range checks {
		if c.Passed || !c.Severity.Blocking() {
			continue
		}
		actions = append(actions, c.Remediation...)
	}
	return actions
}

// EstimateCompletion is a step function of the failed-check count.
func (se *ScoringEngine) EstimateCompletion(checks []ComplianceCheck) time.Duration {
	failed := 0
	for _, c := range checks {
		if !c.Passed {
			failed++
		}
	}
	switch {
	case failed == 0:
		return 0
	case failed <= 2:
		return 24 * time.Hour
	case failed <= 5:
		return 3 * 24 * time.Hour
	case failed <= 10:
		return 7 * 24 * time.Hour
	default:
		return 14 * 24 * time.Hour
	}
}
