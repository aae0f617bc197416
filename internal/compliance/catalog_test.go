package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/veridex/compliance-core/pkg/errors"
)

func TestRequirementsForUnknownJurisdiction(t *testing.T) {
	c := NewRuleCatalog(zaptest.NewLogger(t))

	_, err := c.RequirementsFor("ATLANTIS")
	require.Error(t, err)
	assert.Equal(t, errors.KindJurisdictionNotSupported, errors.KindOf(err))
}

func TestRequirementsForSeededJurisdictions(t *testing.T) {
	c := NewRuleCatalog(zaptest.NewLogger(t))

	for _, j := range []string{"US", "EU", "UK", "SG"} {
		reqs, err := c.RequirementsFor(j)
		require.NoError(t, err, j)
		assert.NotEmpty(t, reqs, j)
	}
	assert.Equal(t, []string{"EU", "SG", "UK", "US"}, c.SupportedJurisdictions())
}

func TestAssetTypeIndexUnknownTypeIsEmpty(t *testing.T) {
	c := NewRuleCatalog(zaptest.NewLogger(t))

	ids := c.AssetTypeRequirementIDs("collectibles")
	assert.Empty(t, ids)
}

func TestApplicability(t *testing.T) {
	c := NewRuleCatalog(zaptest.NewLogger(t))

	wildcard := &ComplianceRequirement{ID: "W", AssetTypes: []string{AssetTypeAny}}
	exact := &ComplianceRequirement{ID: "E", AssetTypes: []string{AssetTypeSecurities}}

	assert.True(t, c.Applicable(wildcard, AssetTypeHighRisk))
	assert.True(t, c.Applicable(exact, AssetTypeSecurities))
	assert.False(t, c.Applicable(exact, AssetTypeHighRisk))

	// SEC_AI_001 declares securities only but is index-listed for
	// derivatives and high_risk.
	reqs, err := c.RequirementsFor("US")
	require.NoError(t, err)
	var ai *ComplianceRequirement
	for _, r := range reqs {
		if r.ID == "SEC_AI_001" {
			ai = r
		}
	}
	require.NotNil(t, ai)
	assert.True(t, c.Applicable(ai, AssetTypeDerivatives))
	assert.True(t, c.Applicable(ai, AssetTypeHighRisk))
	assert.False(t, c.Applicable(ai, AssetTypeRealEstate))
}

func TestAddAndToggleRequirement(t *testing.T) {
	c := NewRuleCatalog(zaptest.NewLogger(t))

	req := &ComplianceRequirement{
		ID:         "CH_KYC_001",
		Framework:  "FINMA",
		Method:     MethodKYC,
		AssetTypes: []string{AssetTypeAny},
		Mandatory:  true,
		Active:     true,
	}
	require.NoError(t, c.AddRequirement("CH", req))

	reqs, err := c.RequirementsFor("CH")
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	// Duplicate ids are rejected
	err = c.AddRequirement("CH", &ComplianceRequirement{ID: "CH_KYC_001", Framework: "FINMA", Method: MethodKYC})
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	// Deactivated requirements drop out of the active list
	require.NoError(t, c.SetActive("CH", "CH_KYC_001", false))
	reqs, err = c.RequirementsFor("CH")
	require.NoError(t, err)
	assert.Empty(t, reqs)

	require.NoError(t, c.SetActive("CH", "CH_KYC_001", true))
	reqs, _ = c.RequirementsFor("CH")
	assert.Len(t, reqs, 1)
}

func TestFrameworkRequirements(t *testing.T) {
	c := NewRuleCatalog(zaptest.NewLogger(t))

	reqs, err := c.FrameworkRequirements("SEC")
	require.NoError(t, err)
	assert.NotEmpty(t, reqs)
	for _, r := range reqs {
		assert.Equal(t, "SEC", r.Framework)
	}

	_, err = c.FrameworkRequirements("KGB")
	assert.Equal(t, errors.KindFrameworkNotSupported, errors.KindOf(err))
}
