package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/karma-nest/job-nest/internal/auth"
	"github.com/karma-nest/job-nest/internal/domain"
	"github.com/karma-nest/job-nest/internal/observability"
	"github.com/karma-nest/job-nest/internal/session"
)

const maxRefreshAttempts = 3

// SessionCache is the token cache used by the auth flows.
type SessionCache interface {
	Get(ctx context.Context, purpose domain.TokenPurpose, userID int64) (string, error)
	Set(ctx context.Context, purpose domain.TokenPurpose, userID int64, token string, ttl time.Duration) error
	Delete(ctx context.Context, purpose domain.TokenPurpose, userID int64) error
	CompareAndSwap(ctx context.Context, purpose domain.TokenPurpose, userID int64, prev, next string, ttl time.Duration) (bool, error)
}

// RefreshProtocol hands out the cached access token while it is valid and
// replaces it once expired. It is only used by login.
type RefreshProtocol struct {
	tokens  *auth.TokenAuthority
	cache   SessionCache
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRefreshProtocol wires the protocol.
func NewRefreshProtocol(tokens *auth.TokenAuthority, cache SessionCache, logger *zap.Logger, metrics *observability.Metrics) *RefreshProtocol {
	return &RefreshProtocol{tokens: tokens, cache: cache, logger: logger, metrics: metrics}
}

// Ensure returns a currently valid access token for the user. Writes are
// compare-and-swap against the value read, so concurrent callers converge on
// a single token.
func (p *RefreshProtocol) Ensure(ctx context.Context, userID int64, role domain.Role) (string, error) {
	for attempt := 0; attempt < maxRefreshAttempts; attempt++ {
		cached, err := p.cache.Get(ctx, domain.PurposeAccess, userID)
		switch {
		case errors.Is(err, session.ErrNotFound):
			cached = ""
		case err != nil:
			p.metrics.RecordRefresh("error")
			return "", err
		}

		if cached != "" {
			_, verr := p.tokens.Verify(role, domain.PurposeAccess, cached)
			if verr == nil {
				p.metrics.RecordRefresh("cached")
				return cached, nil
			}
			if !auth.IsExpired(verr) {
				p.metrics.RecordRefresh("corrupt")
				p.logger.Error("cached access token failed verification",
					zap.Int64("user_id", userID),
					zap.Error(verr))
				return "", fmt.Errorf("%w: %v", ErrCorruptSession, verr)
			}
		}

		fresh, err := p.tokens.Sign(auth.TokenClaims{SubjectID: userID, Role: role, Purpose: domain.PurposeAccess})
		if err != nil {
			p.metrics.RecordRefresh("error")
			return "", err
		}

		swapped, err := p.cache.CompareAndSwap(ctx, domain.PurposeAccess, userID, cached, fresh, 0)
		if err != nil {
			p.metrics.RecordRefresh("error")
			return "", err
		}
		if swapped {
			if cached == "" {
				p.metrics.RecordRefresh("minted")
			} else {
				p.metrics.RecordRefresh("reissued")
			}
			return fresh, nil
		}
		// Another login replaced the entry first; adopt its token on the next read.
	}

	p.metrics.RecordRefresh("contended")
	return "", ErrSessionContended
}
