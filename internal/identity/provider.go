// Package identity defines the external identity-verification provider
// contract and the priority-ordered fallback chain over it.
package identity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/veridex/compliance-core/pkg/errors"
	"github.com/veridex/compliance-core/pkg/metrics"
)

// VerifyParams is the investor data handed to a provider.
type VerifyParams struct {
	InvestorID   string            `json:"investor_id"`
	FirstName    string            `json:"first_name,omitempty"`
	LastName     string            `json:"last_name,omitempty"`
	DateOfBirth  string            `json:"date_of_birth,omitempty"`
	CountryCode  string            `json:"country_code,omitempty"`
	DocumentType string            `json:"document_type,omitempty"`
	DocumentID   string            `json:"document_id,omitempty"`
	ExtraFields  map[string]string `json:"extra_fields,omitempty"`
}

// Result is a provider's verdict.
type Result struct {
	Verified bool   `json:"verified"`
	Level    int    `json:"level"`
	Reason   string `json:"reason,omitempty"`
	Provider string `json:"provider"`
}

// Provider is the contract an external identity-verification service
// implements (e.g. Jumio, Onfido).
type Provider interface {
	Name() string
	Verify(ctx context.Context, params VerifyParams) (Result, error)
}

// FallbackVerifier tries providers in a fixed priority order: the first
// provider that answers verified wins; a not-verified answer, an error or a
// timeout moves on to the next. Exhausting the chain is a hard failure,
// never a silent pass. The chain is inherently sequential.
type FallbackVerifier struct {
	logger    *zap.Logger
	providers []Provider
	timeout   time.Duration
}

// NewFallbackVerifier builds a chain over the given providers, in order.
func NewFallbackVerifier(logger *zap.Logger, timeout time.Duration, providers ...Provider) (*FallbackVerifier, error) {
	if len(providers) == 0 {
		return nil, errors.New(errors.KindConfiguration, "at least one identity provider is required")
	}
	if timeout <= 0 {
		return nil, errors.New(errors.KindConfiguration, "provider timeout must be positive")
	}
	return &FallbackVerifier{logger: logger, providers: providers, timeout: timeout}, nil
}

// Verify runs the fallback chain. The returned result is always the verdict
// of the provider that answered verified; when no provider does, the error
// kind is VerificationFailed.
func (f *FallbackVerifier) Verify(ctx context.Context, params VerifyParams) (Result, error) {
	var lastReason string
	for i, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return Result{}, errors.Wrap(errors.KindExternalService, "verification cancelled", err)
		}

		pctx, cancel := context.WithTimeout(ctx, f.timeout)
		res, err := p.Verify(pctx, params)
		cancel()

		switch {
		case err != nil:
			// A timeout is treated identically to a provider error.
			metrics.ProviderAttempts.WithLabelValues(p.Name(), "error").Inc()
			f.logger.Warn("identity provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err))
			lastReason = err.Error()
		case res.Verified:
			metrics.ProviderAttempts.WithLabelValues(p.Name(), "verified").Inc()
			metrics.FallbackDepth.Observe(float64(i + 1))
			res.Provider = p.Name()
			return res, nil
		default:
			metrics.ProviderAttempts.WithLabelValues(p.Name(), "not_verified").Inc()
			f.logger.Info("identity provider did not verify, trying next",
				zap.String("provider", p.Name()),
				zap.String("reason", res.Reason))
			lastReason = res.Reason
		}
	}

	metrics.FallbackDepth.Observe(float64(len(f.providers)))
	return Result{}, errors.Newf(errors.KindVerificationFailed,
		"all %d identity providers exhausted for investor %s (last reason: %s)",
		len(f.providers), params.InvestorID, lastReason)
}

// Providers returns the configured provider names in priority order.
func (f *FallbackVerifier) Providers() []string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return names
}
