package compliance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veridex/compliance-core/pkg/errors"
)

// ProfileRepository is the narrow durable-store contract for investor
// profile rows. Implementations live in internal/storage.
type ProfileRepository interface {
	UpsertProfile(ctx context.Context, profile *InvestorProfile) error
}

// ProfileStore holds investor profiles and computes a tamper-evidence hash
// on every write, verified on every read. The hash is a corruption
// detector, not an authentication boundary.
type ProfileStore struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	access   *AccessControl
	secret   []byte
	profiles map[string]*InvestorProfile
	keyLocks map[string]*sync.Mutex
	repo     ProfileRepository // optional, best-effort persistence
}

// NewProfileStore creates a profile store. The secret feeds the integrity
// hash; an empty secret is a configuration error at the service level.
func NewProfileStore(logger *zap.Logger, access *AccessControl, secret []byte, repo ProfileRepository) *ProfileStore {
	return &ProfileStore{
		logger:   logger,
		access:   access,
		secret:   secret,
		profiles: make(map[string]*InvestorProfile),
		keyLocks: make(map[string]*sync.Mutex),
		repo:     repo,
	}
}

// keyLock returns the per-investor write mutex, creating it on first use.
func (s *ProfileStore) keyLock(investorID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keyLocks[investorID]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[investorID] = l
	}
	return l
}

// integrityHash derives the tamper-evidence hash from the profile's
// identity fields and last-updated stamp.
func (s *ProfileStore) integrityHash(p *InvestorProfile) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s|%d",
		p.InvestorID, p.Jurisdiction, p.InvestorType, p.LastUpdated.UnixNano())
	return hex.EncodeToString(mac.Sum(nil))
}

// Write stores a profile, recomputing its integrity hash and stamping
// last-updated. Writes for the same investor are serialized.
func (s *ProfileStore) Write(ctx context.Context, profile *InvestorProfile) error {
	if profile == nil || profile.InvestorID == "" {
		return errors.New(errors.KindInvalidInput, "profile requires an investor id")
	}

	lock := s.keyLock(profile.InvestorID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	stored := profile.Clone()
	stored.LastUpdated = now
	stored.LastAccessed = now
	stored.IntegrityHash = s.integrityHash(stored)

	s.mu.Lock()
	s.profiles[stored.InvestorID] = stored
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.UpsertProfile(ctx, stored); err != nil {
			// Durable persistence is best-effort; the in-memory copy is
			// authoritative for evaluation.
			s.logger.Error("profile upsert failed",
				zap.String("investor_id", stored.InvestorID),
				zap.Error(err))
		}
	}

	profile.LastUpdated = stored.LastUpdated
	profile.IntegrityHash = stored.IntegrityHash
	return nil
}

// Read returns a copy of the profile after access check and integrity
// verification. A hash mismatch is fatal and the profile is never returned.
func (s *ProfileStore) Read(investorID, caller string) (*InvestorProfile, error) {
	if err := s.access.Check(caller, AccessReadOnly); err != nil {
		return nil, err
	}

	s.mu.RLock()
	stored, ok := s.profiles[investorID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.KindInvestorNotFound, "investor %q not found", investorID)
	}

	expected := s.integrityHash(stored)
	if !hmac.Equal([]byte(expected), []byte(stored.IntegrityHash)) {
		s.logger.Error("profile integrity check failed",
			zap.String("investor_id", investorID))
		return nil, errors.Newf(errors.KindDataIntegrity,
			"integrity hash mismatch for investor %q", investorID)
	}

	s.mu.Lock()
	stored.LastAccessed = time.Now().UTC()
	cp := stored.Clone()
	s.mu.Unlock()
	return cp, nil
}

// Exists reports whether a profile is stored, without an access check.
func (s *ProfileStore) Exists(investorID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.profiles[investorID]
	return ok
}

// tamper is a test hook: it mutates a stored profile in place without
// rewriting the hash.
func (s *ProfileStore) tamper(investorID string, mutate func(*InvestorProfile)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[investorID]
	if !ok {
		return false
	}
	mutate(p)
	return true
}
