package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veridex/compliance-core/internal/audit"
	"github.com/veridex/compliance-core/internal/identity"
	"github.com/veridex/compliance-core/pkg/errors"
	"github.com/veridex/compliance-core/pkg/metrics"
)

// Service is the top-level compliance orchestrator. Each call is logically
// independent; shared state lives in the catalog, profile store, access
// control and audit log, which handle their own locking.
type Service struct {
	logger     *zap.Logger
	cfg        PolicyConfig
	catalog    *RuleCatalog
	profiles   *ProfileStore
	access     *AccessControl
	evaluator  *Evaluator
	heuristics *RiskHeuristics
	scoring    *ScoringEngine
	auditLog   *audit.Log
	verifier   *identity.FallbackVerifier
	cache      Cache
	artifacts  ArtifactStore

	// Optional collaborators
	reports   ReportRepository
	sanctions SanctionsScreener
	tax       TaxCalculator
	oracle    OnChainOracle

	limiter *rateLimiter
	stats   serviceStats
}

// Option configures optional collaborators on the service.
type Option func(*Service)

// WithReportRepository enables best-effort durable report persistence.
func WithReportRepository(r ReportRepository) Option {
	return func(s *Service) { s.reports = r }
}

// WithSanctionsScreener enables live restricted-party screening.
func WithSanctionsScreener(sc SanctionsScreener) Option {
	return func(s *Service) { s.sanctions = sc }
}

// WithTaxCalculator enables tax computation for checked transactions.
func WithTaxCalculator(t TaxCalculator) Option {
	return func(s *Service) { s.tax = t }
}

// WithOnChainOracle enables the on-chain compliance hook.
func WithOnChainOracle(o OnChainOracle) Option {
	return func(s *Service) { s.oracle = o }
}

// NewService creates the orchestrator. Catalog, profiles, access control,
// audit log, verifier, cache and artifact store are all required.
func NewService(
	logger *zap.Logger,
	cfg PolicyConfig,
	catalog *RuleCatalog,
	profiles *ProfileStore,
	access *AccessControl,
	auditLog *audit.Log,
	verifier *identity.FallbackVerifier,
	cache Cache,
	artifacts ArtifactStore,
	opts ...Option,
) (*Service, error) {
	if logger == nil {
		return nil, errors.New(errors.KindConfiguration, "logger is required")
	}
	if catalog == nil || profiles == nil || access == nil || auditLog == nil {
		return nil, errors.New(errors.KindConfiguration, "catalog, profile store, access control and audit log are required")
	}
	if verifier == nil {
		return nil, errors.New(errors.KindConfiguration, "identity verifier is required")
	}
	if cache == nil {
		return nil, errors.New(errors.KindConfiguration, "result cache is required")
	}
	if artifacts == nil {
		return nil, errors.New(errors.KindConfiguration, "artifact store is required")
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	s := &Service{
		logger:     logger,
		cfg:        cfg,
		catalog:    catalog,
		profiles:   profiles,
		access:     access,
		evaluator:  NewEvaluator(cfg),
		heuristics: NewRiskHeuristics(cfg),
		scoring:    NewScoringEngine(cfg),
		auditLog:   auditLog,
		verifier:   verifier,
		cache:      cache,
		artifacts:  artifacts,
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func cacheKey(investorID, jurisdiction string) string {
	return fmt.Sprintf("result:%s:%s", investorID, jurisdiction)
}

// PerformComplianceCheck runs the full verification workflow for a
// prospective transaction and returns a durable, auditable report.
func (s *Service) PerformComplianceCheck(ctx context.Context, caller, investorID, jurisdiction string, amount decimal.Decimal, assetType string) (*ComplianceResult, error) {
	start := time.Now()
	if investorID == "" || jurisdiction == "" {
		return nil, errors.New(errors.KindInvalidInput, "investor id and jurisdiction are required")
	}
	if amount.IsNegative() {
		return nil, errors.New(errors.KindInvalidInput, "amount must not be negative")
	}
	// The gate must hold on the cached path too, not just on the profile
	// read below.
	if err := s.access.Check(caller, AccessReadOnly); err != nil {
		return nil, err
	}
	if s.limiter != nil && !s.limiter.allow(investorID) {
		return nil, errors.Newf(errors.KindRateLimitExceeded, "too many compliance checks for investor %s", investorID)
	}

	// 1. Cache lookup. A hit younger than the TTL is returned verbatim.
	if cached := s.cachedResult(ctx, investorID, jurisdiction); cached != nil {
		s.stats.cacheHit()
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	s.stats.cacheMiss()
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	// 2. Identity verification fallback chain. Exhaustion is a hard failure.
	if _, err := s.verifier.Verify(ctx, identity.VerifyParams{InvestorID: investorID}); err != nil {
		return nil, err
	}

	// 3. Profile read with access and integrity checks.
	profile, err := s.profiles.Read(investorID, caller)
	if err != nil {
		return nil, err
	}

	// External hooks run concurrently; all must complete before scoring.
	if err := s.runExternalHooks(ctx, profile, amount, assetType); err != nil {
		return nil, err
	}

	// 4. Requirement resolution and evaluation.
	reqs, err := s.catalog.RequirementsFor(jurisdiction)
	if err != nil {
		return nil, err
	}
	checks := make([]ComplianceCheck, 0, len(reqs)+3)
	for _, req := range reqs {
		if !s.catalog.Applicable(req, assetType) || !req.AppliesToAmount(amount) {
			continue
		}
		checks = append(checks, s.evaluator.Evaluate(profile, req, assetType, amount))
	}

	// 5. Supplementary risk heuristics.
	checks = append(checks, s.heuristics.Run(profile, amount)...)

	// 6. Scoring and report assembly.
	score, compliant := s.scoring.Score(checks)
	result := &ComplianceResult{
		InvestorID:          investorID,
		Jurisdiction:        jurisdiction,
		AssetType:           assetType,
		Amount:              amount,
		IsCompliant:         compliant,
		OverallScore:        score,
		Checks:              checks,
		Recommendations:     s.scoring.Recommendations(checks),
		RequiredActions:     s.scoring.RequiredActions(checks),
		EstimatedCompletion: s.scoring.EstimateCompletion(checks),
		AuditTrailID:        uuid.New(),
		GeneratedAt:         time.Now().UTC(),
	}

	// A call cancelled before the artifact upload reports failure and
	// leaves no cache entry and no audit record.
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.KindExternalService, "compliance check cancelled", err)
	}

	// 7. Mandatory artifact upload: the content reference is the durable
	// proof of the check.
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(errors.KindExternalService, "failed to serialize compliance result", err)
	}
	ref, err := s.uploadArtifact(ctx, payload)
	if err != nil {
		return nil, err
	}
	result.ArtifactRef = ref

	// 8. Cache write plus best-effort durable persistence.
	s.persistResult(ctx, result)

	// 9. Audit.
	s.auditLog.Event(ctx, "compliance.check_performed", investorID, caller,
		&compliant, riskLevelFor(score), map[string]any{
			"jurisdiction":   jurisdiction,
			"asset_type":     assetType,
			"amount":         amount.String(),
			"overall_score":  score,
			"artifact_ref":   ref,
			"audit_trail_id": result.AuditTrailID.String(),
		})

	s.stats.record(result)
	outcome := "non_compliant"
	if compliant {
		outcome = "compliant"
	}
	metrics.ChecksPerformed.WithLabelValues(outcome).Inc()
	for _, c := range checks {
		if !c.Passed {
			metrics.CheckFailures.WithLabelValues(string(c.Severity)).Inc()
		}
	}
	metrics.CheckLatency.Observe(time.Since(start).Seconds())

	s.logger.Info("compliance check completed",
		zap.String("investor_id", investorID),
		zap.String("jurisdiction", jurisdiction),
		zap.Int("score", score),
		zap.Bool("compliant", compliant),
		zap.Int("checks", len(checks)))
	return result, nil
}

// cachedResult returns a fresh-enough cached report, or nil.
func (s *Service) cachedResult(ctx context.Context, investorID, jurisdiction string) *ComplianceResult {
	data, ok, err := s.cache.Get(ctx, cacheKey(investorID, jurisdiction))
	if err != nil {
		s.logger.Warn("result cache lookup failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var result ComplianceResult
	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.Warn("discarding undecodable cached result", zap.Error(err))
		return nil
	}
	if time.Since(result.GeneratedAt) >= s.cfg.CacheTTL {
		metrics.CacheLookups.WithLabelValues("stale").Inc()
		return nil
	}
	return &result
}

// runExternalHooks issues the sanctions, tax and on-chain calls in
// parallel and joins before returning. Screening results feed directly
// into the profile copy used for evaluation.
func (s *Service) runExternalHooks(ctx context.Context, profile *InvestorProfile, amount decimal.Decimal, assetType string) error {
	if s.sanctions == nil && s.tax == nil && s.oracle == nil {
		return nil
	}
	hctx, cancel := context.WithTimeout(ctx, s.cfg.ExternalTimeout)
	defer cancel()

	g, hctx := errgroup.WithContext(hctx)

	// Each hook records its verdict in its own variable; the profile copy is
	// only touched after the join.
	var sanctioned, oracleBlocked bool
	if s.sanctions != nil {
		g.Go(func() error {
			res, err := s.sanctions.Screen(hctx, profile.InvestorID)
			if err != nil {
				return errors.Wrap(errors.KindExternalService, "sanctions screening failed", err)
			}
			if res.IsSanctioned {
				sanctioned = true
				s.logger.Warn("investor matched sanctions lists",
					zap.String("investor_id", profile.InvestorID),
					zap.Strings("matched_lists", res.MatchedLists))
			}
			return nil
		})
	}
	if s.tax != nil {
		g.Go(func() error {
			if _, err := s.tax.Calculate(hctx, profile.InvestorID, amount, profile.Jurisdiction); err != nil {
				return errors.Wrap(errors.KindExternalService, "tax calculation failed", err)
			}
			return nil
		})
	}
	if s.oracle != nil {
		g.Go(func() error {
			ok, err := s.oracle.Check(hctx, profile.InvestorID, amount, assetType)
			if err != nil {
				return errors.Wrap(errors.KindExternalService, "on-chain compliance check failed", err)
			}
			oracleBlocked = !ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if sanctioned || oracleBlocked {
		profile.SanctionsStatus = SanctionsStatusBlocked
	}
	return nil
}

func (s *Service) uploadArtifact(ctx context.Context, payload []byte) (string, error) {
	actx, cancel := context.WithTimeout(ctx, s.cfg.ExternalTimeout)
	defer cancel()
	ref, err := s.artifacts.UploadEncrypted(actx, payload)
	if err != nil {
		return "", errors.Wrap(errors.KindExternalService, "artifact upload failed", err)
	}
	return ref, nil
}

// persistResult caches the report and writes it to durable storage. Both
// are best-effort once the artifact exists.
func (s *Service) persistResult(ctx context.Context, result *ComplianceResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("failed to encode result for caching", zap.Error(err))
		return
	}
	if err := s.cache.SetWithTTL(ctx, cacheKey(result.InvestorID, result.Jurisdiction), payload, s.cfg.CacheTTL); err != nil {
		s.logger.Error("failed to cache compliance result", zap.Error(err))
	}
	if s.reports != nil {
		if err := s.reports.InsertReport(ctx, result); err != nil {
			s.logger.Error("failed to persist compliance report", zap.Error(err))
		}
	}
}

// VerifyKYC exposes the identity-verification fallback chain standalone.
func (s *Service) VerifyKYC(ctx context.Context, params identity.VerifyParams) (identity.Result, error) {
	res, err := s.verifier.Verify(ctx, params)
	if err != nil {
		return identity.Result{}, err
	}
	s.auditLog.Event(ctx, "compliance.kyc_verified", params.InvestorID, "system",
		&res.Verified, "low", map[string]any{"provider": res.Provider, "level": res.Level})
	return res, nil
}

// CreateInvestorProfile stores a new profile on first KYC intake.
func (s *Service) CreateInvestorProfile(ctx context.Context, caller string, profile *InvestorProfile) error {
	if err := s.access.Check(caller, AccessStandard); err != nil {
		return err
	}
	if profile == nil || profile.InvestorID == "" {
		return errors.New(errors.KindInvalidInput, "profile requires an investor id")
	}
	if s.profiles.Exists(profile.InvestorID) {
		return errors.Newf(errors.KindInvalidInput, "investor %q already exists", profile.InvestorID)
	}
	profile.CreatedBy = caller
	if err := s.profiles.Write(ctx, profile); err != nil {
		return err
	}
	ok := true
	s.auditLog.Event(ctx, "compliance.profile_created", profile.InvestorID, caller,
		&ok, "low", map[string]any{"jurisdiction": profile.Jurisdiction})
	return nil
}

// UpdateInvestorProfile is the access-gated write path for profile changes.
func (s *Service) UpdateInvestorProfile(ctx context.Context, caller string, profile *InvestorProfile) error {
	if err := s.access.Check(caller, AccessStandard); err != nil {
		return err
	}
	if profile == nil || profile.InvestorID == "" {
		return errors.New(errors.KindInvalidInput, "profile requires an investor id")
	}
	if !s.profiles.Exists(profile.InvestorID) {
		return errors.Newf(errors.KindInvestorNotFound, "investor %q not found", profile.InvestorID)
	}
	if err := s.profiles.Write(ctx, profile); err != nil {
		return err
	}
	ok := true
	s.auditLog.Event(ctx, "compliance.profile_updated", profile.InvestorID, caller,
		&ok, "low", map[string]any{"jurisdiction": profile.Jurisdiction})
	return nil
}

// GetInvestorProfile reads a profile through the integrity-checked path.
func (s *Service) GetInvestorProfile(ctx context.Context, caller, investorID string) (*InvestorProfile, error) {
	return s.profiles.Read(investorID, caller)
}

// GetSupportedJurisdictions lists the jurisdictions in the rule catalog.
func (s *Service) GetSupportedJurisdictions() []string {
	return s.catalog.SupportedJurisdictions()
}

// GetFrameworkRequirements returns the requirements owned by a framework.
func (s *Service) GetFrameworkRequirements(framework string) ([]*ComplianceRequirement, error) {
	return s.catalog.FrameworkRequirements(framework)
}

// GrantAccess records an access level for a caller. Administrative only.
func (s *Service) GrantAccess(ctx context.Context, caller, target string, level AccessLevel) error {
	if err := s.access.Check(caller, AccessAdministrative); err != nil {
		return err
	}
	s.access.Grant(target, level)
	ok := true
	s.auditLog.Event(ctx, "compliance.access_granted", "", caller,
		&ok, "medium", map[string]any{"target": target, "level": level.String()})
	return nil
}

// RevokeAccess removes a caller's access level. Administrative only.
func (s *Service) RevokeAccess(ctx context.Context, caller, target string) error {
	if err := s.access.Check(caller, AccessAdministrative); err != nil {
		return err
	}
	s.access.Revoke(target)
	ok := true
	s.auditLog.Event(ctx, "compliance.access_revoked", "", caller,
		&ok, "medium", map[string]any{"target": target})
	return nil
}

// AddRequirement amends the rule catalog. Administrative only.
func (s *Service) AddRequirement(ctx context.Context, caller, jurisdiction string, req *ComplianceRequirement, indexAssetTypes ...string) error {
	if err := s.access.Check(caller, AccessAdministrative); err != nil {
		return err
	}
	if err := s.catalog.AddRequirement(jurisdiction, req, indexAssetTypes...); err != nil {
		return err
	}
	ok := true
	s.auditLog.Event(ctx, "compliance.requirement_added", "", caller,
		&ok, "medium", map[string]any{"jurisdiction": jurisdiction, "requirement_id": req.ID})
	return nil
}

// SetRequirementActive toggles a catalog entry. Administrative only.
func (s *Service) SetRequirementActive(ctx context.Context, caller, jurisdiction, requirementID string, active bool) error {
	if err := s.access.Check(caller, AccessAdministrative); err != nil {
		return err
	}
	if err := s.catalog.SetActive(jurisdiction, requirementID, active); err != nil {
		return err
	}
	ok := true
	s.auditLog.Event(ctx, "compliance.requirement_toggled", "", caller,
		&ok, "medium", map[string]any{"requirement_id": requirementID, "active": active})
	return nil
}

// GetAuditLog returns audit entries, optionally filtered by investor.
// Elevated access or better is required.
func (s *Service) GetAuditLog(ctx context.Context, caller, investorID string) ([]audit.Entry, error) {
	if err := s.access.Check(caller, AccessElevated); err != nil {
		return nil, err
	}
	return s.auditLog.Entries(investorID), nil
}

// GetComplianceStats aggregates engine activity counters.
func (s *Service) GetComplianceStats(ctx context.Context, caller string) (*ComplianceStats, error) {
	if err := s.access.Check(caller, AccessStandard); err != nil {
		return nil, err
	}
	stats := s.stats.snapshot()
	stats.Jurisdictions = len(s.catalog.SupportedJurisdictions())
	return stats, nil
}

func riskLevelFor(score int) string {
	switch {
	case score >= 90:
		return "low"
	case score >= 70:
		return "medium"
	case score >= 40:
		return "high"
	default:
		return "critical"
	}
}

// serviceStats tracks engine activity under a single small mutex.
type serviceStats struct {
	mu                 sync.Mutex
	totalChecks        int64
	compliantChecks    int64
	nonCompliantChecks int64
	failuresBySeverity map[Severity]int64
	cacheHits          int64
	cacheMisses        int64
}

func (st *serviceStats) record(result *ComplianceResult) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.totalChecks++
	if result.IsCompliant {
		st.compliantChecks++
	} else {
		st.nonCompliantChecks++
	}
	if st.failuresBySeverity == nil {
		st.failuresBySeverity = make(map[Severity]int64)
	}
	for _, c := range result.Checks {
		if !c.Passed {
			st.failuresBySeverity[c.Severity]++
		}
	}
}

func (st *serviceStats) cacheHit() {
	st.mu.Lock()
	st.cacheHits++
	st.mu.Unlock()
}

func (st *serviceStats) cacheMiss() {
	st.mu.Lock()
	st.cacheMisses++
	st.mu.Unlock()
}

func (st *serviceStats) snapshot() *ComplianceStats {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := &ComplianceStats{
		TotalChecks:        st.totalChecks,
		CompliantChecks:    st.compliantChecks,
		NonCompliantChecks: st.nonCompliantChecks,
		FailuresBySeverity: make(map[Severity]int64, len(st.failuresBySeverity)),
		CacheHits:          st.cacheHits,
		CacheMisses:        st.cacheMisses,
	}
	for k, v := range st.failuresBySeverity {
		out.FailuresBySeverity[k] = v
	}
	return out
}

// rateLimiter is a fixed-window per-investor limiter.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*windowBucket
}

type windowBucket struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*windowBucket),
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.start) >= rl.window {
		rl.buckets[key] = &windowBucket{start: now, count: 1}
		return true
	}
	if b.count >= rl.limit {
		return false
	}
	b.count++
	return true
}
