package compliance

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veridex/compliance-core/pkg/errors"
)

// RuleCatalog holds per-jurisdiction ordered requirement lists plus a
// per-asset-type requirement-id index. The index lets a requirement apply
// to several asset classes without declaring the wildcard scope.
type RuleCatalog struct {
	mu             sync.RWMutex
	logger         *zap.Logger
	byJurisdiction map[string][]*ComplianceRequirement
	assetTypeIndex map[string]map[string]struct{}
}

// NewRuleCatalog creates a catalog seeded with the built-in regulatory
// frameworks.
func NewRuleCatalog(logger *zap.Logger) *RuleCatalog {
	c := &RuleCatalog{
		logger:         logger,
		byJurisdiction: make(map[string][]*ComplianceRequirement),
		assetTypeIndex: make(map[string]map[string]struct{}),
	}
	c.seed()
	return c
}

// RequirementsFor returns the ordered active requirements for a
// jurisdiction. Unknown jurisdictions are a hard error.
func (c *RuleCatalog) RequirementsFor(jurisdiction string) ([]*ComplianceRequirement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	reqs, ok := c.byJurisdiction[jurisdiction]
	if !ok {
		return nil, errors.Newf(errors.KindJurisdictionNotSupported,
			"jurisdiction %q is not supported", jurisdiction)
	}
	out := make([]*ComplianceRequirement, 0, len(reqs))
	for _, r := range reqs {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// AssetTypeRequirementIDs returns the supplemental requirement-id set for
// an asset type. Unknown asset types yield an empty set, not an error.
func (c *RuleCatalog) AssetTypeRequirementIDs(assetType string) map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]struct{})
	for id := range c.assetTypeIndex[assetType] {
		out[id] = struct{}{}
	}
	return out
}

// Applicable reports whether a requirement covers the asset type: wildcard
// scope, exact declaration, or presence in the asset-type index. An empty
// asset type matches everything.
func (c *RuleCatalog) Applicable(req *ComplianceRequirement, assetType string) bool {
	if assetType == "" || req.AppliesTo(assetType) {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.assetTypeIndex[assetType][req.ID]
	return ok
}

// SupportedJurisdictions lists the jurisdictions the catalog knows about,
// sorted for stable output.
func (c *RuleCatalog) SupportedJurisdictions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.byJurisdiction))
	for j := range c.byJurisdiction {
		out = append(out, j)
	}
	sort.Strings(out)
	return out
}

// FrameworkRequirements returns every requirement owned by a regulatory
// framework across jurisdictions.
func (c *RuleCatalog) FrameworkRequirements(framework string) ([]*ComplianceRequirement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*ComplianceRequirement
	for _, reqs := range c.byJurisdiction {
		for _, r := range reqs {
			if r.Framework == framework {
				out = append(out, r)
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.Newf(errors.KindFrameworkNotSupported,
			"framework %q is not supported", framework)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddRequirement appends a requirement to a jurisdiction's ordered list and
// registers its asset-type index entries.
func (c *RuleCatalog) AddRequirement(jurisdiction string, req *ComplianceRequirement, indexAssetTypes ...string) error {
	if req.ID == "" || req.Framework == "" || req.Method == "" {
		return errors.New(errors.KindInvalidInput, "requirement needs id, framework and method")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.byJurisdiction[jurisdiction] {
		if existing.ID == req.ID {
			return errors.Newf(errors.KindInvalidInput, "requirement %q already exists in %s", req.ID, jurisdiction)
		}
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	c.byJurisdiction[jurisdiction] = append(c.byJurisdiction[jurisdiction], req)
	for _, at := range indexAssetTypes {
		if c.assetTypeIndex[at] == nil {
			c.assetTypeIndex[at] = make(map[string]struct{})
		}
		c.assetTypeIndex[at][req.ID] = struct{}{}
	}
	c.logger.Info("requirement added",
		zap.String("jurisdiction", jurisdiction),
		zap.String("requirement_id", req.ID),
		zap.String("framework", req.Framework))
	return nil
}

// SetActive toggles a requirement's active flag.
func (c *RuleCatalog) SetActive(jurisdiction, requirementID string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reqs, ok := c.byJurisdiction[jurisdiction]
	if !ok {
		return errors.Newf(errors.KindJurisdictionNotSupported,
			"jurisdiction %q is not supported", jurisdiction)
	}
	for _, r := range reqs {
		if r.ID == requirementID {
			r.Active = active
			c.logger.Info("requirement toggled",
				zap.String("requirement_id", requirementID),
				zap.Bool("active", active))
			return nil
		}
	}
	return errors.Newf(errors.KindInvalidInput, "requirement %q not found in %s", requirementID, jurisdiction)
}

// seed loads the built-in catalog. Entries are ordered; evaluation order is
// the order here.
func (c *RuleCatalog) seed() {
	now := time.Now().UTC()
	add := func(jurisdiction string, req ComplianceRequirement, indexAssetTypes ...string) {
		req.Active = true
		req.CreatedAt = now
		r := req
		c.byJurisdiction[jurisdiction] = append(c.byJurisdiction[jurisdiction], &r)
		for _, at := range indexAssetTypes {
			if c.assetTypeIndex[at] == nil {
				c.assetTypeIndex[at] = make(map[string]struct{})
			}
			c.assetTypeIndex[at][req.ID] = struct{}{}
		}
	}

	// United States
	add("US", ComplianceRequirement{ID: "SEC_KYC_001", Framework: "SEC", Mandatory: true, Method: MethodKYC, AssetTypes: []string{AssetTypeAny}})
	add("US", ComplianceRequirement{ID: "FINCEN_AML_001", Framework: "FinCEN", Mandatory: true, Method: MethodAML, AssetTypes: []string{AssetTypeAny}})
	add("US", ComplianceRequirement{ID: "OFAC_SANC_001", Framework: "OFAC", Mandatory: true, Method: MethodSanctionsScreening, AssetTypes: []string{AssetTypeAny}})
	add("US", ComplianceRequirement{ID: "SEC_AI_001", Framework: "SEC", Mandatory: true, Method: MethodAccreditedInvestor, AssetTypes: []string{AssetTypeSecurities}},
		AssetTypeDerivatives, AssetTypeHighRisk)
	add("US", ComplianceRequirement{ID: "SEC_SUIT_001", Framework: "SEC", Mandatory: false, Method: MethodSuitabilityAssessment, AssetTypes: []string{AssetTypeAny}})
	add("US", ComplianceRequirement{ID: "SEC_LIMIT_001", Framework: "SEC", Mandatory: false, Method: MethodInvestmentLimit, AssetTypes: []string{AssetTypeHighRisk, AssetTypeDerivatives}})
	add("US", ComplianceRequirement{ID: "SEC_COOL_001", Framework: "SEC", Mandatory: false, Method: MethodCoolingPeriod, AssetTypes: []string{AssetTypeHighRisk}, CoolingPeriodDays: 7})
	add("US", ComplianceRequirement{ID: "IRS_TAX_001", Framework: "IRS", Mandatory: false, Method: MethodTaxResidency, AssetTypes: []string{AssetTypeAny}})
	add("US", ComplianceRequirement{ID: "GEO_001", Framework: "OFAC", Mandatory: true, Method: MethodGeographicRestriction, AssetTypes: []string{AssetTypeAny}})

	// European Union
	add("EU", ComplianceRequirement{ID: "MIFID_KYC_001", Framework: "MiFID II", Mandatory: true, Method: MethodKYC, AssetTypes: []string{AssetTypeAny}})
	add("EU", ComplianceRequirement{ID: "AMLD_AML_001", Framework: "AMLD6", Mandatory: true, Method: MethodAML, AssetTypes: []string{AssetTypeAny}})
	add("EU", ComplianceRequirement{ID: "EU_SANC_001", Framework: "EU Sanctions", Mandatory: true, Method: MethodSanctionsScreening, AssetTypes: []string{AssetTypeAny}})
	add("EU", ComplianceRequirement{ID: "MIFID_PROF_001", Framework: "MiFID II", Mandatory: false, Method: MethodProfessionalInvestor, AssetTypes: []string{AssetTypeDerivatives, AssetTypeHighRisk}})
	add("EU", ComplianceRequirement{ID: "MIFID_SUIT_001", Framework: "MiFID II", Mandatory: false, Method: MethodSuitabilityAssessment, AssetTypes: []string{AssetTypeAny}})
	add("EU", ComplianceRequirement{ID: "EU_TAX_001", Framework: "DAC7", Mandatory: false, Method: MethodTaxResidency, AssetTypes: []string{AssetTypeAny}})
	add("EU", ComplianceRequirement{ID: "GEO_001", Framework: "EU Sanctions", Mandatory: true, Method: MethodGeographicRestriction, AssetTypes: []string{AssetTypeAny}})

	// United Kingdom
	add("UK", ComplianceRequirement{ID: "FCA_KYC_001", Framework: "FCA", Mandatory: true, Method: MethodKYC, AssetTypes: []string{AssetTypeAny}})
	add("UK", ComplianceRequirement{ID: "FCA_AML_001", Framework: "FCA", Mandatory: true, Method: MethodAML, AssetTypes: []string{AssetTypeAny}})
	add("UK", ComplianceRequirement{ID: "HMT_SANC_001", Framework: "HMT", Mandatory: true, Method: MethodSanctionsScreening, AssetTypes: []string{AssetTypeAny}})
	add("UK", ComplianceRequirement{ID: "FCA_QI_001", Framework: "FCA", Mandatory: false, Method: MethodQualifiedInvestor, AssetTypes: []string{AssetTypeHighRisk}},
		AssetTypeDerivatives)
	add("UK", ComplianceRequirement{ID: "FCA_SUIT_001", Framework: "FCA", Mandatory: false, Method: MethodSuitabilityAssessment, AssetTypes: []string{AssetTypeAny}})

	// Singapore
	add("SG", ComplianceRequirement{ID: "MAS_KYC_001", Framework: "MAS", Mandatory: true, Method: MethodKYC, AssetTypes: []string{AssetTypeAny}})
	add("SG", ComplianceRequirement{ID: "MAS_AML_001", Framework: "MAS", Mandatory: true, Method: MethodAML, AssetTypes: []string{AssetTypeAny}})
	add("SG", ComplianceRequirement{ID: "MAS_SANC_001", Framework: "MAS", Mandatory: true, Method: MethodSanctionsScreening, AssetTypes: []string{AssetTypeAny}})
	add("SG", ComplianceRequirement{ID: "MAS_INST_001", Framework: "MAS", Mandatory: false, Method: MethodInstitutionalInvestor, AssetTypes: []string{AssetTypeDerivatives}})
	add("SG", ComplianceRequirement{ID: "MAS_COOL_001", Framework: "MAS", Mandatory: false, Method: MethodCoolingPeriod, AssetTypes: []string{AssetTypeHighRisk}, CoolingPeriodDays: 14})
}
