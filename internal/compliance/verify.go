package compliance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Evaluator runs one checker per verification method. Every method is a
// pure function of (profile, requirement, asset type, amount); adding a
// method means extending the switch in Evaluate.
type Evaluator struct {
	cfg PolicyConfig
	now func() time.Time
}

// NewEvaluator creates an evaluator with the given policy parameters.
func NewEvaluator(cfg PolicyConfig) *Evaluator {
	return &Evaluator{cfg: cfg, now: time.Now}
}

func (e *Evaluator) newCheck(req *ComplianceRequirement, passed bool, severity Severity, message string, remediation ...string) ComplianceCheck {
	if passed {
		severity = SeverityInfo
		remediation = nil
	}
	return ComplianceCheck{
		CheckID:       uuid.New(),
		RequirementID: req.ID,
		Framework:     req.Framework,
		Passed:        passed,
		Message:       message,
		Severity:      severity,
		Remediation:   remediation,
		Timestamp:     e.now().UTC(),
	}
}

// Evaluate dispatches on the requirement's verification method and returns
// one ComplianceCheck. Unknown methods fail the check rather than erroring;
// a catalog carrying a method this build does not know is a deployment
// mismatch the report must surface.
func (e *Evaluator) Evaluate(profile *InvestorProfile, req *ComplianceRequirement, assetType string, amount decimal.Decimal) ComplianceCheck {
	switch req.Method {
	case MethodKYC:
		return e.checkKYC(profile, req)
	case MethodAML:
		return e.checkAML(profile, req)
	case MethodSanctionsScreening:
		return e.checkSanctions(profile, req)
	case MethodAccreditedInvestor:
		return e.checkInvestorClass(profile, req, "accredited investor",
			SeverityError, InvestorTypeAccredited, InvestorTypeInstitutional)
	case MethodQualifiedInvestor:
		return e.checkInvestorClass(profile, req, "qualified investor",
			SeverityError, InvestorTypeQualified, InvestorTypeProfessional, InvestorTypeInstitutional)
	case MethodProfessionalInvestor:
		return e.checkInvestorClass(profile, req, "professional investor",
			SeverityWarning, InvestorTypeProfessional, InvestorTypeInstitutional)
	case MethodInstitutionalInvestor:
		return e.checkInvestorClass(profile, req, "institutional investor",
			SeverityError, InvestorTypeInstitutional)
	case MethodInvestmentLimit:
		return e.checkInvestmentLimit(profile, req, assetType, amount)
	case MethodCoolingPeriod:
		return e.checkCoolingPeriod(profile, req, assetType)
	case MethodTaxResidency:
		return e.checkTaxResidency(profile, req)
	case MethodSuitabilityAssessment:
		return e.checkSuitability(profile, req, assetType)
	case MethodGeographicRestriction:
		return e.checkGeographicRestriction(profile, req)
	default:
		return e.newCheck(req, false, SeverityError,
			fmt.Sprintf("Unknown verification method %q", req.Method),
			"Update the compliance engine to a build that understands this requirement")
	}
}

func (e *Evaluator) checkKYC(profile *InvestorProfile, req *ComplianceRequirement) ComplianceCheck {
	if profile.KYCStatus == KYCStatusCompleted {
		return e.newCheck(req, true, SeverityInfo, "KYC verification completed")
	}
	severity := SeverityWarning
	if req.Mandatory {
		severity = SeverityCritical
	}
	return e.newCheck(req, false, severity,
		fmt.Sprintf("KYC verification not completed (status: %s)", profile.KYCStatus),
		"Complete KYC verification with an approved identity provider")
}

func (e *Evaluator) checkAML(profile *InvestorProfile, req *ComplianceRequirement) ComplianceCheck {
	if profile.AMLStatus == AMLStatusClear {
		return e.newCheck(req, true, SeverityInfo, "AML screening clear")
	}
	severity := SeverityError
	if req.Mandatory {
		severity = SeverityCritical
	}
	return e.newCheck(req, false, severity,
		fmt.Sprintf("AML screening not clear (status: %s)", profile.AMLStatus),
		"Complete AML screening and resolve outstanding flags")
}

func (e *Evaluator) checkSanctions(profile *InvestorProfile, req *ComplianceRequirement) ComplianceCheck {
	if profile.SanctionsStatus == SanctionsStatusClear {
		return e.newCheck(req, true, SeverityInfo, "Sanctions screening clear")
	}
	// Any non-clear sanctions status is Critical regardless of mandatory flag.
	return e.newCheck(req, false, SeverityCritical,
		fmt.Sprintf("Sanctions screening failed (status: %s)", profile.SanctionsStatus),
		"Contact the compliance team to resolve sanctions screening findings")
}

func (e *Evaluator) checkInvestorClass(profile *InvestorProfile, req *ComplianceRequirement, class string, failSeverity Severity, accepted ...InvestorType) ComplianceCheck {
	for _, t := range accepted {
		if profile.InvestorType == t {
			return e.newCheck(req, true, SeverityInfo,
				fmt.Sprintf("Investor qualifies as %s (%s)", class, profile.InvestorType))
		}
	}
	// Verified accreditation satisfies the accredited-investor check even
	// when the declared investor type does not.
	if req.Method == MethodAccreditedInvestor && profile.Accreditation == AccreditationVerified {
		return e.newCheck(req, true, SeverityInfo, "Accreditation status verified")
	}
	return e.newCheck(req, false, failSeverity,
		fmt.Sprintf("Investor type %s does not qualify as %s", profile.InvestorType, class),
		fmt.Sprintf("Obtain %s certification before investing in this asset class", class))
}

func (e *Evaluator) checkInvestmentLimit(profile *InvestorProfile, req *ComplianceRequirement, assetType string, amount decimal.Decimal) ComplianceCheck {
	limit, ok := profile.Limits[assetType]
	if !ok {
		// Missing configuration signals missing setup, not a breach.
		return e.newCheck(req, false, SeverityWarning,
			fmt.Sprintf("No investment limit configured for asset type %q", assetType),
			"Configure investment limits for this asset type")
	}
	remaining := limit.Remaining()
	if amount.LessThanOrEqual(remaining) {
		return e.newCheck(req, true, SeverityInfo,
			fmt.Sprintf("Investment within limit: %s / %s remaining", remaining, limit.MaxAmount))
	}
	return e.newCheck(req, false, SeverityError,
		fmt.Sprintf("Investment limit exceeded: %s / %s remaining", remaining, limit.MaxAmount),
		"Reduce the investment amount or request a limit increase")
}

func (e *Evaluator) checkCoolingPeriod(profile *InvestorProfile, req *ComplianceRequirement, assetType string) ComplianceCheck {
	if req.CoolingPeriodDays <= 0 {
		return e.newCheck(req, true, SeverityInfo, "No cooling period declared")
	}
	last, ok := profile.LastInvestments[assetType]
	if !ok {
		return e.newCheck(req, true, SeverityInfo, "First investment in asset type, no cooling period applies")
	}
	elapsed := e.now().Sub(last)
	required := time.Duration(req.CoolingPeriodDays) * 24 * time.Hour
	if elapsed >= required {
		return e.newCheck(req, true, SeverityInfo, "Cooling period satisfied")
	}
	remainingDays := req.CoolingPeriodDays - int(elapsed.Hours()/24)
	return e.newCheck(req, false, SeverityWarning,
		fmt.Sprintf("Cooling period of %d days not satisfied", req.CoolingPeriodDays),
		fmt.Sprintf("Wait %d more days before next investment", remainingDays))
}

func (e *Evaluator) checkTaxResidency(profile *InvestorProfile, req *ComplianceRequirement) ComplianceCheck {
	if len(profile.TaxResidencies) > 0 {
		return e.newCheck(req, true, SeverityInfo, "Tax residency documented")
	}
	return e.newCheck(req, false, SeverityWarning,
		"No tax residency on file",
		"Provide tax residency documentation")
}

// suitability is the fixed risk-rating by asset-type compatibility matrix.
func suitable(rating RiskRating, assetType string) bool {
	switch rating {
	case RiskRatingProhibited:
		return false
	case RiskRatingHigh:
		return assetType != AssetTypeHighRisk
	case RiskRatingMedium:
		return assetType != AssetTypeHighRisk && assetType != AssetTypeDerivatives
	case RiskRatingLow:
		switch assetType {
		case AssetTypeSecurities, AssetTypeRealEstate, AssetTypeCommodities:
			return true
		}
		return false
	default:
		return false
	}
}

func (e *Evaluator) checkSuitability(profile *InvestorProfile, req *ComplianceRequirement, assetType string) ComplianceCheck {
	if assetType == "" {
		return e.newCheck(req, true, SeverityInfo, "No asset type specified, suitability not assessed")
	}
	if suitable(profile.RiskRating, assetType) {
		return e.newCheck(req, true, SeverityInfo,
			fmt.Sprintf("Asset type %q suitable for %s risk rating", assetType, profile.RiskRating))
	}
	return e.newCheck(req, false, SeverityError,
		fmt.Sprintf("Asset type %q not suitable for %s risk rating", assetType, profile.RiskRating),
		"Complete a suitability reassessment or choose a different asset class")
}

func (e *Evaluator) checkGeographicRestriction(profile *InvestorProfile, req *ComplianceRequirement) ComplianceCheck {
	for _, j := range e.cfg.RestrictedJurisdictions {
		if profile.Jurisdiction == j {
			return e.newCheck(req, false, SeverityCritical,
				fmt.Sprintf("Jurisdiction %q is restricted", profile.Jurisdiction),
				"Transactions from restricted jurisdictions cannot proceed")
		}
	}
	return e.newCheck(req, true, SeverityInfo, "Jurisdiction not restricted")
}
