package compliance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskHeuristics runs supplementary checks that are not tied to the rule
// catalog. They only ever produce Warning severity and so never block a
// transaction on their own.
type RiskHeuristics struct {
	cfg PolicyConfig
	now func() time.Time
}

// NewRiskHeuristics creates the heuristic checker.
func NewRiskHeuristics(cfg PolicyConfig) *RiskHeuristics {
	return &RiskHeuristics{cfg: cfg, now: time.Now}
}

func (h *RiskHeuristics) check(id string, passed bool, message string, remediation ...string) ComplianceCheck {
	severity := SeverityInfo
	if !passed {
		severity = SeverityWarning
	} else {
		remediation = nil
	}
	return ComplianceCheck{
		CheckID:       uuid.New(),
		RequirementID: id,
		Framework:     "RiskHeuristics",
		Passed:        passed,
		Message:       message,
		Severity:      severity,
		Remediation:   remediation,
		Timestamp:     h.now().UTC(),
	}
}

// Run appends the heuristic checks for a transaction.
func (h *RiskHeuristics) Run(profile *InvestorProfile, amount decimal.Decimal) []ComplianceCheck {
	checks := make([]ComplianceCheck, 0, 3)

	highValue := amount.GreaterThan(h.cfg.HighValueThreshold) &&
		profile.InvestorType != InvestorTypeInstitutional &&
		profile.InvestorType != InvestorTypeAccredited
	if highValue {
		checks = append(checks, h.check("RISK_HIGH_VALUE", false,
			fmt.Sprintf("Transaction of %s exceeds the high-value threshold for a %s investor", amount, profile.InvestorType),
			"Consider enhanced due diligence for this transaction"))
	} else {
		checks = append(checks, h.check("RISK_HIGH_VALUE", true, "Transaction below high-value threshold"))
	}

	if profile.ComplianceScore < h.cfg.LowScoreThreshold {
		checks = append(checks, h.check("RISK_LOW_SCORE", false,
			fmt.Sprintf("Compliance score %d is below threshold %d", profile.ComplianceScore, h.cfg.LowScoreThreshold),
			"Review and refresh the investor's compliance standing"))
	} else {
		checks = append(checks, h.check("RISK_LOW_SCORE", true, "Compliance score above threshold"))
	}

	if h.now().Sub(profile.LastUpdated) > h.cfg.StaleProfileAge {
		checks = append(checks, h.check("RISK_STALE_PROFILE", false,
			"Investor profile has not been updated recently",
			"Refresh the investor profile with current information"))
	} else {
		checks = append(checks, h.check("RISK_STALE_PROFILE", true, "Investor profile is current"))
	}

	return checks
}
