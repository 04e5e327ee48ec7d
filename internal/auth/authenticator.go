// Package auth resolves inbound bearer credentials to verified tenant
// contexts. The pipeline is a strict ordered sequence of fallible checks,
// terminal on the first failure; identity resolution may be served from a
// TTL-bounded cache but the quota check always hits the ledger.
package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/gragdev/grag-gateway/internal/authcache"
	"github.com/gragdev/grag-gateway/internal/crypto"
	"github.com/gragdev/grag-gateway/internal/models"
	"github.com/gragdev/grag-gateway/internal/usage"

	log "github.com/sirupsen/logrus"
)

// CredentialStore is the durable lookup surface the authenticator needs.
type CredentialStore interface {
	FindAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
	FindUserByID(ctx context.Context, id uint64) (*models.User, error)
	FindConnectionByID(ctx context.Context, id uint64) (*models.Connection, error)
	FindPlan(ctx context.Context, tier string) (*models.Plan, error)
	TouchAPIKeyLastUsed(ctx context.Context, keyID uint64) error
}

// QuotaLedger is the live usage surface. The authenticator only reads it;
// callers report outcomes through their own ledger handle after the
// upstream call completes.
type QuotaLedger interface {
	GetOrCreate(ctx context.Context, userID uint64, yearMonth string) (*models.MonthlyUsage, error)
}

// defaultMonthlyLimit applies when a tenant's plan row is missing or carries
// no explicit limit.
const defaultMonthlyLimit = 100

// EffectiveMonthlyLimit resolves a plan row to the enforced monthly request
// limit. A nil plan or a zero limit yields the default; the unlimited
// sentinel passes through.
func EffectiveMonthlyLimit(plan *models.Plan) int64 {
	if plan != nil && plan.MonthlyRequestLimit != 0 {
		return int64(plan.MonthlyRequestLimit)
	}
	return defaultMonthlyLimit
}

var bearerPattern = regexp.MustCompile(`(?i)^Bearer\s+(.+)$`)

// Authenticator resolves bearer tokens to tenant contexts.
type Authenticator struct {
	store         CredentialStore
	cache         authcache.Cache
	ledger        QuotaLedger
	encryptionKey string
	cacheTTL      time.Duration
	nowFn         func() time.Time
}

// NewAuthenticator constructs an Authenticator. A zero cacheTTL falls back
// to the cache package default.
func NewAuthenticator(store CredentialStore, cache authcache.Cache, ledger QuotaLedger, encryptionKey string, cacheTTL time.Duration) *Authenticator {
	if cacheTTL <= 0 {
		cacheTTL = authcache.DefaultTTL
	}
	return &Authenticator{
		store:         store,
		cache:         cache,
		ledger:        ledger,
		encryptionKey: encryptionKey,
		cacheTTL:      cacheTTL,
		nowFn:         time.Now,
	}
}

// Authenticate runs the full pipeline against an Authorization header value.
//
// On success it returns a Context whose usage snapshot reflects the live
// ledger. The authenticator never increments the ledger itself; the caller
// reports the upstream outcome afterwards, which makes the monthly limit a
// soft bound under concurrent bursts near the cap.
func (a *Authenticator) Authenticate(ctx context.Context, authHeader string) (*Context, *Failure) {
	token, failExtract := extractBearer(authHeader)
	if failExtract != nil {
		return nil, failExtract
	}

	// Cheap format gate before any hashing or store work.
	if !strings.HasPrefix(token, crypto.APIKeyPrefix) {
		return nil, newFailure(CodeInvalidAPIKey, "Invalid API key format")
	}

	hashedKey := crypto.HashAPIKey(token)

	entry, failResolve := a.resolveIdentity(ctx, hashedKey)
	if failResolve != nil {
		return nil, failResolve
	}

	snapshot, failQuota := a.checkQuota(ctx, entry)
	if failQuota != nil {
		return nil, failQuota
	}

	geminiKey, errDecrypt := crypto.Decrypt(entry.GeminiAPIKeyEncrypted, a.encryptionKey)
	if errDecrypt != nil {
		log.WithError(errDecrypt).WithField("api_key_id", entry.APIKeyID).Error("auth: stored credential decryption failed")
		return nil, newFailure(CodeDecryptionError, "Failed to decrypt upstream credential")
	}

	a.touchLastUsed(entry.APIKeyID)

	return &Context{
		User:     UserInfo{ID: entry.UserID, Email: entry.Email, Plan: entry.Plan},
		APIKeyID: entry.APIKeyID,
		Connection: ConnectionInfo{
			ID:              entry.ConnectionID,
			GeminiAPIKey:    geminiKey,
			DefaultCorpusID: entry.DefaultCorpusID,
		},
		Usage: snapshot,
	}, nil
}

// extractBearer validates the Authorization header shape and returns the
// raw token.
func extractBearer(authHeader string) (string, *Failure) {
	if strings.TrimSpace(authHeader) == "" {
		return "", newFailure(CodeMissingAuth, "Authorization header is required")
	}
	match := bearerPattern.FindStringSubmatch(authHeader)
	if match == nil {
		return "", newFailure(CodeInvalidAuthFormat, `Authorization header must be "Bearer <api_key>"`)
	}
	return match[1], nil
}

// resolveIdentity returns the identity tuple for a hashed key, cache-first.
//
// A hit may be stale with respect to revocation or suspension; that
// staleness is bounded by the cache TTL and accepted. Quota is never part
// of the tuple.
func (a *Authenticator) resolveIdentity(ctx context.Context, hashedKey string) (*authcache.Entry, *Failure) {
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, hashedKey); ok {
			return cached, nil
		}
	}

	keyRecord, errKey := a.store.FindAPIKeyByHash(ctx, hashedKey)
	if errKey != nil {
		log.WithError(errKey).Error("auth: api key lookup failed")
		return nil, newFailure(CodeInvalidAPIKey, "Invalid or revoked API key")
	}
	if keyRecord == nil || !keyRecord.IsActive() {
		return nil, newFailure(CodeInvalidAPIKey, "Invalid or revoked API key")
	}

	user, errUser := a.store.FindUserByID(ctx, keyRecord.UserID)
	if errUser != nil {
		log.WithError(errUser).Error("auth: user lookup failed")
		return nil, newFailure(CodeInvalidAPIKey, "Invalid or revoked API key")
	}
	if user == nil || !user.IsActive() {
		return nil, newFailure(CodeAccountSuspended, "Account is suspended or deleted")
	}

	conn, errConn := a.store.FindConnectionByID(ctx, keyRecord.ConnectionID)
	if errConn != nil {
		log.WithError(errConn).Error("auth: connection lookup failed")
		return nil, newFailure(CodeInvalidAPIKey, "Invalid or revoked API key")
	}
	if conn == nil || !conn.IsActive() {
		return nil, newFailure(CodeConnectionInactive, "Upstream connection is inactive or deleted")
	}

	entry := &authcache.Entry{
		UserID:                user.ID,
		Email:                 user.Email,
		Plan:                  user.Plan,
		ConnectionID:          conn.ID,
		GeminiAPIKeyEncrypted: conn.GeminiAPIKeyEncrypted,
		DefaultCorpusID:       conn.DefaultCorpusID,
		APIKeyID:              keyRecord.ID,
	}
	if a.cache != nil {
		a.cache.Put(ctx, hashedKey, entry, a.cacheTTL)
	}
	return entry, nil
}

// checkQuota enforces the monthly limit against the live ledger. This is
// deliberately a separate call from resolveIdentity: identity may be served
// stale from cache, quota standing may not.
func (a *Authenticator) checkQuota(ctx context.Context, entry *authcache.Entry) (UsageSnapshot, *Failure) {
	plan, errPlan := a.store.FindPlan(ctx, entry.Plan)
	if errPlan != nil {
		log.WithError(errPlan).Error("auth: plan lookup failed")
		return UsageSnapshot{}, newFailure(CodeInvalidAPIKey, "Invalid or revoked API key")
	}
	limit := EffectiveMonthlyLimit(plan)

	yearMonth := usage.CurrentYearMonth(a.nowFn())
	row, errUsage := a.ledger.GetOrCreate(ctx, entry.UserID, yearMonth)
	if errUsage != nil {
		log.WithError(errUsage).Error("auth: usage lookup failed")
		return UsageSnapshot{}, newFailure(CodeInvalidAPIKey, "Invalid or revoked API key")
	}

	if limit != models.UnlimitedSentinel && row.RequestCount >= limit {
		failure := newFailure(CodeRateLimitExceeded, "Monthly request limit exceeded")
		failure.Detail = map[string]any{
			"limit": limit,
			"used":  row.RequestCount,
			"plan":  entry.Plan,
		}
		return UsageSnapshot{}, failure
	}

	remaining := int64(models.UnlimitedSentinel)
	if limit != models.UnlimitedSentinel {
		remaining = limit - row.RequestCount
	}
	return UsageSnapshot{Current: row.RequestCount, Limit: limit, Remaining: remaining}, nil
}

// touchLastUsed stamps the key record off the request path. The update is
// detached from the caller's context and its failure is swallowed; it must
// never delay or void an authentication result already decided.
func (a *Authenticator) touchLastUsed(keyID uint64) {
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.WithField("panic", recovered).Warn("auth: last-used touch panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errTouch := a.store.TouchAPIKeyLastUsed(ctx, keyID); errTouch != nil {
			log.WithError(errTouch).Debug("auth: last-used touch failed")
		}
	}()
}
