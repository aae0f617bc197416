package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/veridex/compliance-core/pkg/errors"
)

func newTestStore(t *testing.T) (*ProfileStore, *AccessControl) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	access := NewAccessControl(logger)
	access.Grant("ops", AccessStandard)
	store := NewProfileStore(logger, access, []byte("test-secret"), nil)
	return store, access
}

func TestWriteThenRead(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	require.NoError(t, store.Write(ctx, p))
	assert.NotEmpty(t, p.IntegrityHash)
	assert.False(t, p.LastUpdated.IsZero())

	got, err := store.Read(p.InvestorID, "ops")
	require.NoError(t, err)
	assert.Equal(t, p.InvestorID, got.InvestorID)
	assert.Equal(t, p.Jurisdiction, got.Jurisdiction)
}

func TestReadUnknownCaller(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Write(context.Background(), testProfile()))

	_, err := store.Read("inv-001", "stranger")
	require.Error(t, err)
	assert.Equal(t, errors.KindAccessDenied, errors.KindOf(err))
}

func TestReadUnknownInvestor(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Read("nobody", "ops")
	assert.Equal(t, errors.KindInvestorNotFound, errors.KindOf(err))
}

// Flipping any hashed field without going through Write must fail the next
// read with a data-integrity error.
func TestTamperDetection(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*InvestorProfile)
	}{
		{"jurisdiction", func(p *InvestorProfile) { p.Jurisdiction = "KY" }},
		{"investor type", func(p *InvestorProfile) { p.InvestorType = InvestorTypeInstitutional }},
		{"last updated", func(p *InvestorProfile) { p.LastUpdated = p.LastUpdated.Add(time.Hour) }},
		{"hash itself", func(p *InvestorProfile) { p.IntegrityHash = "deadbeef" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t)
			require.NoError(t, store.Write(context.Background(), testProfile()))

			require.True(t, store.tamper("inv-001", tt.mutate))

			_, err := store.Read("inv-001", "ops")
			require.Error(t, err)
			assert.Equal(t, errors.KindDataIntegrity, errors.KindOf(err))
		})
	}
}

func TestRewriteAfterMutationRestoresIntegrity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	require.NoError(t, store.Write(ctx, p))

	p.Jurisdiction = "UK"
	require.NoError(t, store.Write(ctx, p))

	got, err := store.Read(p.InvestorID, "ops")
	require.NoError(t, err)
	assert.Equal(t, "UK", got.Jurisdiction)
}

func TestReadReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	p.Limits = map[string]InvestmentLimit{AssetTypeHighRisk: {}}
	require.NoError(t, store.Write(ctx, p))

	got, err := store.Read(p.InvestorID, "ops")
	require.NoError(t, err)
	got.Jurisdiction = "MARS"
	delete(got.Limits, AssetTypeHighRisk)

	again, err := store.Read(p.InvestorID, "ops")
	require.NoError(t, err)
	assert.Equal(t, "US", again.Jurisdiction)
	assert.Contains(t, again.Limits, AssetTypeHighRisk)
}

func TestAccessControlLevels(t *testing.T) {
	logger := zaptest.NewLogger(t)
	access := NewAccessControl(logger)

	// No recorded level is always denied, even for ReadOnly.
	err := access.Check("ghost", AccessReadOnly)
	assert.Equal(t, errors.KindAccessDenied, errors.KindOf(err))

	access.Grant("alice", AccessStandard)
	assert.NoError(t, access.Check("alice", AccessReadOnly))
	assert.NoError(t, access.Check("alice", AccessStandard))
	assert.Error(t, access.Check("alice", AccessElevated))

	// Administrative satisfies everything.
	access.Grant("root", AccessAdministrative)
	for _, lvl := range []AccessLevel{AccessReadOnly, AccessStandard, AccessElevated, AccessAdministrative} {
		assert.NoError(t, access.Check("root", lvl))
	}

	access.Revoke("alice")
	assert.Error(t, access.Check("alice", AccessReadOnly))
}
