package compliance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Severity classifies a check failure and drives score deduction and
// blocking behavior.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a failed check of this severity makes the
// overall result non-compliant. Warning and Info failures never block.
func (s Severity) Blocking() bool {
	return s == SeverityCritical || s == SeverityError
}

// AccessLevel is an ordinal authorization tier. Administrative satisfies
// every required level.
type AccessLevel int

const (
	AccessReadOnly AccessLevel = iota
	AccessStandard
	AccessElevated
	AccessAdministrative
)

func (l AccessLevel) String() string {
	switch l {
	case AccessReadOnly:
		return "read_only"
	case AccessStandard:
		return "standard"
	case AccessElevated:
		return "elevated"
	case AccessAdministrative:
		return "administrative"
	default:
		return "unknown"
	}
}

// VerificationMethod identifies how a requirement is checked against an
// investor profile. The evaluator dispatches exhaustively over these.
type VerificationMethod string

const (
	MethodKYC                     VerificationMethod = "kyc"
	MethodAML                     VerificationMethod = "aml"
	MethodAccreditedInvestor      VerificationMethod = "accredited_investor_check"
	MethodQualifiedInvestor       VerificationMethod = "qualified_investor_status"
	MethodProfessionalInvestor    VerificationMethod = "professional_investor_verification"
	MethodInstitutionalInvestor   VerificationMethod = "institutional_investor_check"
	MethodInvestmentLimit         VerificationMethod = "investment_limit_check"
	MethodCoolingPeriod           VerificationMethod = "cooling_period_check"
	MethodSanctionsScreening      VerificationMethod = "sanctions_screening"
	MethodTaxResidency            VerificationMethod = "tax_residency_verification"
	MethodSuitabilityAssessment   VerificationMethod = "suitability_assessment"
	MethodGeographicRestriction   VerificationMethod = "geographic_restriction"
)

// KYCStatus represents the status of a KYC verification
type KYCStatus string

const (
	KYCStatusNotStarted KYCStatus = "not_started"
	KYCStatusPending    KYCStatus = "pending"
	KYCStatusCompleted  KYCStatus = "completed"
	KYCStatusFailed     KYCStatus = "failed"
	KYCStatusExpired    KYCStatus = "expired"
)

// AMLStatus represents the status of AML screening
type AMLStatus string

const (
	AMLStatusNotScreened AMLStatus = "not_screened"
	AMLStatusPending     AMLStatus = "pending"
	AMLStatusClear       AMLStatus = "clear"
	AMLStatusFlagged     AMLStatus = "flagged"
)

// AccreditationStatus represents investor accreditation certification
type AccreditationStatus string

const (
	AccreditationNone     AccreditationStatus = "none"
	AccreditationPending  AccreditationStatus = "pending"
	AccreditationVerified AccreditationStatus = "verified"
	AccreditationExpired  AccreditationStatus = "expired"
)

// SanctionsStatus represents the result of restricted-party screening
type SanctionsStatus string

const (
	SanctionsStatusPending SanctionsStatus = "pending"
	SanctionsStatusClear   SanctionsStatus = "clear"
	SanctionsStatusBlocked SanctionsStatus = "blocked"
)

// InvestorType classifies an investor for eligibility checks
type InvestorType string

const (
	InvestorTypeRetail        InvestorType = "retail"
	InvestorTypeAccredited    InvestorType = "accredited"
	InvestorTypeQualified     InvestorType = "qualified"
	InvestorTypeProfessional  InvestorType = "professional"
	InvestorTypeInstitutional InvestorType = "institutional"
)

// RiskRating is the investor's suitability rating
type RiskRating string

const (
	RiskRatingLow        RiskRating = "low"
	RiskRatingMedium     RiskRating = "medium"
	RiskRatingHigh       RiskRating = "high"
	RiskRatingProhibited RiskRating = "prohibited"
)

// Common asset types. Requirements may scope to any string; these are the
// values the suitability matrix and seeded catalog know about.
const (
	AssetTypeAny         = "*"
	AssetTypeSecurities  = "securities"
	AssetTypeRealEstate  = "real_estate"
	AssetTypeCommodities = "commodities"
	AssetTypeDerivatives = "derivatives"
	AssetTypeHighRisk    = "high_risk"
)

// ComplianceRequirement is a single regulatory requirement in the catalog.
// Immutable once created; the catalog only toggles Active.
type ComplianceRequirement struct {
	ID                string              `json:"id"`
	Framework         string              `json:"framework"`
	Mandatory         bool                `json:"mandatory"`
	Method            VerificationMethod  `json:"method"`
	AssetTypes        []string            `json:"asset_types"`
	MinInvestment     *decimal.Decimal    `json:"min_investment,omitempty"`
	MaxInvestment     *decimal.Decimal    `json:"max_investment,omitempty"`
	CoolingPeriodDays int                 `json:"cooling_period_days,omitempty"`
	Active            bool                `json:"active"`
	CreatedAt         time.Time           `json:"created_at"`
}

// AppliesTo reports whether the requirement covers the asset type, either
// by wildcard or exact declaration. Catalog-index matches are resolved by
// the RuleCatalog on top of this.
func (r *ComplianceRequirement) AppliesTo(assetType string) bool {
	for _, at := range r.AssetTypes {
		if at == AssetTypeAny || at == assetType {
			return true
		}
	}
	return false
}

// AppliesToAmount reports whether the transaction amount falls inside the
// requirement's optional investment thresholds.
func (r *ComplianceRequirement) AppliesToAmount(amount decimal.Decimal) bool {
	if r.MinInvestment != nil && amount.LessThan(*r.MinInvestment) {
		return false
	}
	if r.MaxInvestment != nil && amount.GreaterThan(*r.MaxInvestment) {
		return false
	}
	return true
}

// InvestmentLimit tracks a per-asset-type exposure ceiling
type InvestmentLimit struct {
	MaxAmount       decimal.Decimal `json:"max_amount"`
	CurrentExposure decimal.Decimal `json:"current_exposure"`
	ResetPeriodDays int             `json:"reset_period_days"`
	LastReset       time.Time       `json:"last_reset"`
}

// Remaining returns the headroom left under the limit
func (l InvestmentLimit) Remaining() decimal.Decimal {
	return l.MaxAmount.Sub(l.CurrentExposure)
}

// InvestorProfile holds everything the engine knows about an investor.
// Mutated only through the ProfileStore write path, which recomputes the
// integrity hash.
type InvestorProfile struct {
	InvestorID      string                     `json:"investor_id" gorm:"primaryKey"`
	Jurisdiction    string                     `json:"jurisdiction" gorm:"index"`
	TaxResidencies  []string                   `json:"tax_residencies" gorm:"serializer:json"`
	InvestorType    InvestorType               `json:"investor_type"`
	KYCStatus       KYCStatus                  `json:"kyc_status"`
	AMLStatus       AMLStatus                  `json:"aml_status"`
	Accreditation   AccreditationStatus        `json:"accreditation_status"`
	SanctionsStatus SanctionsStatus            `json:"sanctions_status"`
	Limits          map[string]InvestmentLimit `json:"investment_limits" gorm:"serializer:json"`
	LastInvestments map[string]time.Time       `json:"last_investments" gorm:"serializer:json"`
	ComplianceScore int                        `json:"compliance_score"`
	RiskRating      RiskRating                 `json:"risk_rating"`
	IntegrityHash   string                     `json:"-"`
	AccessLevel     AccessLevel                `json:"access_level"`
	CreatedBy       string                     `json:"created_by"`
	LastUpdated     time.Time                  `json:"last_updated"`
	LastAccessed    time.Time                  `json:"last_accessed"`
}

// TableName sets the gorm table for investor profiles
func (InvestorProfile) TableName() string { return "investor_profiles" }

// Clone returns a deep copy so callers never share mutable maps with the
// store's canonical copy.
func (p *InvestorProfile) Clone() *InvestorProfile {
	cp := *p
	cp.TaxResidencies = append([]string(nil), p.TaxResidencies...)
	if p.Limits != nil {
		cp.Limits = make(map[string]InvestmentLimit, len(p.Limits))
		for k, v := range p.Limits {
			cp.Limits[k] = v
		}
	}
	if p.LastInvestments != nil {
		cp.LastInvestments = make(map[string]time.Time, len(p.LastInvestments))
		for k, v := range p.LastInvestments {
			cp.LastInvestments[k] = v
		}
	}
	return &cp
}

// ComplianceCheck is the outcome of evaluating one requirement (or one risk
// heuristic). Created per evaluation, never mutated.
type ComplianceCheck struct {
	CheckID       uuid.UUID `json:"check_id"`
	RequirementID string    `json:"requirement_id"`
	Framework     string    `json:"framework"`
	Passed        bool      `json:"passed"`
	Message       string    `json:"message"`
	Severity      Severity  `json:"severity"`
	Remediation   []string  `json:"remediation,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ComplianceResult is the full report for one orchestrated check.
type ComplianceResult struct {
	InvestorID          string            `json:"investor_id"`
	Jurisdiction        string            `json:"jurisdiction"`
	AssetType           string            `json:"asset_type,omitempty"`
	Amount              decimal.Decimal   `json:"amount"`
	IsCompliant         bool              `json:"is_compliant"`
	OverallScore        int               `json:"overall_score"`
	Checks              []ComplianceCheck `json:"checks"`
	Recommendations     []string          `json:"recommendations"`
	RequiredActions     []string          `json:"required_actions"`
	EstimatedCompletion time.Duration     `json:"estimated_completion"`
	AuditTrailID        uuid.UUID         `json:"audit_trail_id"`
	ArtifactRef         string            `json:"artifact_ref,omitempty"`
	GeneratedAt         time.Time         `json:"generated_at"`
}

// ComplianceStats aggregates engine activity for operational introspection.
type ComplianceStats struct {
	TotalChecks        int64              `json:"total_checks"`
	CompliantChecks    int64              `json:"compliant_checks"`
	NonCompliantChecks int64              `json:"non_compliant_checks"`
	FailuresBySeverity map[Severity]int64 `json:"failures_by_severity"`
	CacheHits          int64              `json:"cache_hits"`
	CacheMisses        int64              `json:"cache_misses"`
	Jurisdictions      int                `json:"jurisdictions"`
}
