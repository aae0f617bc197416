package compliance

import (
	"sync"

	"go.uber.org/zap"

	"github.com/veridex/compliance-core/pkg/errors"
)

// AccessControl maps caller identities to access levels and gates every
// mutating or sensitive read in the engine.
type AccessControl struct {
	mu     sync.RWMutex
	logger *zap.Logger
	levels map[string]AccessLevel
}

// NewAccessControl creates an empty access map.
func NewAccessControl(logger *zap.Logger) *AccessControl {
	return &AccessControl{
		logger: logger,
		levels: make(map[string]AccessLevel),
	}
}

// Grant records an access level for a caller.
func (a *AccessControl) Grant(caller string, level AccessLevel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.levels[caller] = level
	a.logger.Info("access granted",
		zap.String("caller", caller),
		zap.String("level", level.String()))
}

// Revoke removes a caller from the access map entirely.
func (a *AccessControl) Revoke(caller string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.levels, caller)
	a.logger.Info("access revoked", zap.String("caller", caller))
}

// Level returns the caller's recorded level, if any.
func (a *AccessControl) Level(caller string) (AccessLevel, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	level, ok := a.levels[caller]
	return level, ok
}

// Check verifies the caller holds at least the required level. Callers with
// no recorded level are always denied; Administrative satisfies everything.
func (a *AccessControl) Check(caller string, required AccessLevel) error {
	a.mu.RLock()
	level, ok := a.levels[caller]
	a.mu.RUnlock()

	if !ok {
		return errors.Newf(errors.KindAccessDenied, "caller %q has no recorded access level", caller)
	}
	if level == AccessAdministrative {
		return nil
	}
	if level < required {
		return errors.Newf(errors.KindAccessDenied,
			"caller %q has %s access, %s required", caller, level, required)
	}
	return nil
}
