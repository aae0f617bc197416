package compliance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Cache is the narrow contract over the compliance result cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ArtifactStore is a content-addressed store for encrypted report blobs.
// The returned reference retrieves the artifact later; the upload is the
// durable proof of a check.
type ArtifactStore interface {
	UploadEncrypted(ctx context.Context, data []byte) (string, error)
}

// SanctionsResult is the outcome of restricted-party screening.
type SanctionsResult struct {
	IsSanctioned bool     `json:"is_sanctioned"`
	MatchedLists []string `json:"matched_lists,omitempty"`
}

// SanctionsScreener checks an investor against restricted-party lists.
type SanctionsScreener interface {
	Screen(ctx context.Context, investorID string) (SanctionsResult, error)
}

// TaxReport is opaque to the core beyond its presence.
type TaxReport struct {
	Jurisdiction string          `json:"jurisdiction"`
	TotalTax     decimal.Decimal `json:"total_tax"`
	Details      map[string]any  `json:"details,omitempty"`
}

// TaxCalculator computes the tax obligations of a prospective transaction.
type TaxCalculator interface {
	Calculate(ctx context.Context, investorID string, amount decimal.Decimal, jurisdiction string) (*TaxReport, error)
}

// OnChainOracle consults on-chain compliance state for the investor.
type OnChainOracle interface {
	Check(ctx context.Context, investorID string, amount decimal.Decimal, assetType string) (bool, error)
}

// ReportRepository is the narrow durable-store contract for compliance
// report rows.
type ReportRepository interface {
	InsertReport(ctx context.Context, result *ComplianceResult) error
}
