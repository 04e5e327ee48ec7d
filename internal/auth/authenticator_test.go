package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gragdev/grag-gateway/internal/authcache"
	"github.com/gragdev/grag-gateway/internal/crypto"
	"github.com/gragdev/grag-gateway/internal/models"
	"github.com/gragdev/grag-gateway/internal/usage"
)

const testMasterKey = "unit-test-master-encryption-key"

type fakeStore struct {
	mu sync.Mutex

	keys  map[string]*models.APIKey
	users map[uint64]*models.User
	conns map[uint64]*models.Connection
	plans map[string]*models.Plan

	keyLookups int
	touched    []uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		keys:  make(map[string]*models.APIKey),
		users: make(map[uint64]*models.User),
		conns: make(map[uint64]*models.Connection),
		plans: make(map[string]*models.Plan),
	}
}

func (s *fakeStore) FindAPIKeyByHash(_ context.Context, hash string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyLookups++
	if key, ok := s.keys[hash]; ok {
		copied := *key
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) FindUserByID(_ context.Context, id uint64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) FindConnectionByID(_ context.Context, id uint64) (*models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.conns[id]; ok {
		copied := *conn
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) FindPlan(_ context.Context, tier string) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan, ok := s.plans[tier]; ok {
		copied := *plan
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) TouchAPIKeyLastUsed(_ context.Context, keyID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, keyID)
	return nil
}

type fakeLedger struct {
	mu   sync.Mutex
	rows map[string]*models.MonthlyUsage
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]*models.MonthlyUsage)}
}

func (l *fakeLedger) key(userID uint64, yearMonth string) string {
	return fmt.Sprintf("%d/%s", userID, yearMonth)
}

func (l *fakeLedger) GetOrCreate(_ context.Context, userID uint64, yearMonth string) (*models.MonthlyUsage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if row, ok := l.rows[l.key(userID, yearMonth)]; ok {
		copied := *row
		return &copied, nil
	}
	row := &models.MonthlyUsage{UserID: userID, YearMonth: yearMonth}
	l.rows[l.key(userID, yearMonth)] = row
	copied := *row
	return &copied, nil
}

func (l *fakeLedger) Increment(_ context.Context, userID uint64, yearMonth string, succeeded bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[l.key(userID, yearMonth)]
	if !ok {
		row = &models.MonthlyUsage{UserID: userID, YearMonth: yearMonth}
		l.rows[l.key(userID, yearMonth)] = row
	}
	row.RequestCount++
	if succeeded {
		row.SuccessCount++
	}
	return nil
}

// seedTenant registers an active user, connection, plan and API key, and
// returns the plaintext bearer key.
func seedTenant(t *testing.T, store *fakeStore, limit int) string {
	t.Helper()
	key, hash, _, errGenerate := crypto.GenerateAPIKey()
	if errGenerate != nil {
		t.Fatalf("generate key: %v", errGenerate)
	}
	encrypted, errEncrypt := crypto.Encrypt("AIzaSy-upstream-secret", testMasterKey)
	if errEncrypt != nil {
		t.Fatalf("encrypt: %v", errEncrypt)
	}

	store.users[1] = &models.User{ID: 1, Email: "tenant@example.com", Plan: "free", Status: models.UserStatusActive}
	store.conns[2] = &models.Connection{
		ID:                    2,
		UserID:                1,
		GeminiAPIKeyEncrypted: encrypted,
		DefaultCorpusID:       "fileSearchStores/default",
		Status:                models.ConnectionStatusActive,
	}
	store.keys[hash] = &models.APIKey{ID: 3, UserID: 1, ConnectionID: 2, KeyHash: hash, Status: models.APIKeyStatusActive}
	store.plans["free"] = &models.Plan{Tier: "free", MonthlyRequestLimit: limit, MaxConnections: 1}
	return key
}

func newTestAuthenticator(store *fakeStore, cache authcache.Cache, ledger QuotaLedger) *Authenticator {
	return NewAuthenticator(store, cache, ledger, testMasterKey, time.Hour)
}

func TestAuthenticateSuccess(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	key := seedTenant(t, store, 100)
	authn := newTestAuthenticator(store, authcache.NewMemoryCache(), ledger)

	authCtx, failure := authn.Authenticate(context.Background(), "Bearer "+key)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if authCtx.User.ID != 1 || authCtx.User.Email != "tenant@example.com" || authCtx.User.Plan != "free" {
		t.Fatalf("user mismatch: %+v", authCtx.User)
	}
	if authCtx.Connection.GeminiAPIKey != "AIzaSy-upstream-secret" {
		t.Fatalf("decrypted key mismatch: %q", authCtx.Connection.GeminiAPIKey)
	}
	if authCtx.Connection.DefaultCorpusID != "fileSearchStores/default" {
		t.Fatalf("default corpus mismatch: %q", authCtx.Connection.DefaultCorpusID)
	}
	if authCtx.Usage.Current != 0 || authCtx.Usage.Limit != 100 || authCtx.Usage.Remaining != 100 {
		t.Fatalf("usage snapshot mismatch: %+v", authCtx.Usage)
	}

	// After the caller reports one successful call, the next authentication
	// reflects it.
	yearMonth := usage.CurrentYearMonth(time.Now())
	if errIncrement := ledger.Increment(context.Background(), 1, yearMonth, true); errIncrement != nil {
		t.Fatalf("increment: %v", errIncrement)
	}
	authCtx, failure = authn.Authenticate(context.Background(), "Bearer "+key)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if authCtx.Usage.Current != 1 || authCtx.Usage.Remaining != 99 {
		t.Fatalf("expected current=1 remaining=99, got %+v", authCtx.Usage)
	}
}

func TestAuthenticateHeaderFailures(t *testing.T) {
	authn := newTestAuthenticator(newFakeStore(), authcache.NewMemoryCache(), newFakeLedger())

	if _, failure := authn.Authenticate(context.Background(), ""); failure == nil || failure.Code != CodeMissingAuth {
		t.Fatalf("expected MISSING_AUTH, got %+v", failure)
	}
	if _, failure := authn.Authenticate(context.Background(), "Basic dXNlcjpwYXNz"); failure == nil || failure.Code != CodeInvalidAuthFormat {
		t.Fatalf("expected INVALID_AUTH_FORMAT, got %+v", failure)
	}
}

func TestAuthenticateBadPrefixSkipsStore(t *testing.T) {
	store := newFakeStore()
	authn := newTestAuthenticator(store, authcache.NewMemoryCache(), newFakeLedger())

	_, failure := authn.Authenticate(context.Background(), "Bearer not-the-right-prefix")
	if failure == nil || failure.Code != CodeInvalidAPIKey {
		t.Fatalf("expected INVALID_API_KEY, got %+v", failure)
	}
	if store.keyLookups != 0 {
		t.Fatalf("store was consulted %d times before the format check", store.keyLookups)
	}
}

func TestAuthenticateUnknownAndRevokedLookAlike(t *testing.T) {
	store := newFakeStore()
	key := seedTenant(t, store, 100)
	authn := newTestAuthenticator(store, authcache.NewMemoryCache(), newFakeLedger())

	_, failUnknown := authn.Authenticate(context.Background(), "Bearer grag_0000000000000000000000000000dead")
	if failUnknown == nil || failUnknown.Code != CodeInvalidAPIKey {
		t.Fatalf("expected INVALID_API_KEY for unknown key, got %+v", failUnknown)
	}

	store.keys[crypto.HashAPIKey(key)].Status = models.APIKeyStatusRevoked
	_, failRevoked := authn.Authenticate(context.Background(), "Bearer "+key)
	if failRevoked == nil || failRevoked.Code != CodeInvalidAPIKey {
		t.Fatalf("expected INVALID_API_KEY for revoked key, got %+v", failRevoked)
	}
	if failUnknown.Message != failRevoked.Message {
		t.Fatalf("unknown and revoked keys are distinguishable: %q vs %q", failUnknown.Message, failRevoked.Message)
	}
}

func TestAuthenticateSuspendedAccount(t *testing.T) {
	store := newFakeStore()
	key := seedTenant(t, store, 100)
	store.users[1].Status = models.UserStatusSuspended
	authn := newTestAuthenticator(store, authcache.NewMemoryCache(), newFakeLedger())

	_, failure := authn.Authenticate(context.Background(), "Bearer "+key)
	if failure == nil || failure.Code != CodeAccountSuspended {
		t.Fatalf("expected ACCOUNT_SUSPENDED, got %+v", failure)
	}
}

func TestAuthenticateInactiveConnection(t *testing.T) {
	store := newFakeStore()
	key := seedTenant(t, store, 100)
	store.conns[2].Status = models.ConnectionStatusInactive
	authn := newTestAuthenticator(store, authcache.NewMemoryCache(), newFakeLedger())

	_, failure := authn.Authenticate(context.Background(), "Bearer "+key)
	if failure == nil || failure.Code != CodeConnectionInactive {
		t.Fatalf("expected CONNECTION_INACTIVE, got %+v", failure)
	}
}

func TestAuthenticateRateLimit(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	key := seedTenant(t, store, 3)
	authn := newTestAuthenticator(store, authcache.NewMemoryCache(), ledger)
	yearMonth := usage.CurrentYearMonth(time.Now())

	for i := 0; i < 3; i++ {
		if _, failure := authn.Authenticate(context.Background(), "Bearer "+key); failure != nil {
			t.Fatalf("request %d unexpectedly failed: %+v", i+1, failure)
		}
		if errIncrement := ledger.Increment(context.Background(), 1, yearMonth, true); errIncrement != nil {
			t.Fatalf("increment: %v", errIncrement)
		}
	}

	_, failure := authn.Authenticate(context.Background(), "Bearer "+key)
	if failure == nil || failure.Code != CodeRateLimitExceeded {
		t.Fatalf("expected RATE_LIMIT_EXCEEDED, got %+v", failure)
	}
	if failure.Detail["limit"] != int64(3) || failure.Detail["used"] != int64(3) || failure.Detail["plan"] != "free" {
		t.Fatalf("detail mismatch: %+v", failure.Detail)
	}
}

func TestAuthenticateUnlimitedPlan(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	key := seedTenant(t, store, models.UnlimitedSentinel)
	authn := newTestAuthenticator(store, authcache.NewMemoryCache(), ledger)
	yearMonth := usage.CurrentYearMonth(time.Now())

	for i := 0; i < 5; i++ {
		if errIncrement := ledger.Increment(context.Background(), 1, yearMonth, true); errIncrement != nil {
			t.Fatalf("increment: %v", errIncrement)
		}
	}
	authCtx, failure := authn.Authenticate(context.Background(), "Bearer "+key)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if authCtx.Usage.Limit != models.UnlimitedSentinel || authCtx.Usage.Remaining != models.UnlimitedSentinel {
		t.Fatalf("expected unlimited snapshot, got %+v", authCtx.Usage)
	}
}

func TestAuthenticateMissingPlanDefaultsLimit(t *testing.T) {
	store := newFakeStore()
	key := seedTenant(t, store, 100)
	delete(store.plans, "free")
	authn := newTestAuthenticator(store, authcache.NewMemoryCache(), newFakeLedger())

	authCtx, failure := authn.Authenticate(context.Background(), "Bearer "+key)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if authCtx.Usage.Limit != 100 {
		t.Fatalf("expected default limit 100, got %d", authCtx.Usage.Limit)
	}
}

// Revocation does not reach authentications served from a still-valid cache
// entry; a fresh resolution after the entry is gone must fail.
func TestAuthenticateCacheStalenessBound(t *testing.T) {
	store := newFakeStore()
	cache := authcache.NewMemoryCache()
	key := seedTenant(t, store, 100)
	authn := newTestAuthenticator(store, cache, newFakeLedger())

	if _, failure := authn.Authenticate(context.Background(), "Bearer "+key); failure != nil {
		t.Fatalf("priming authentication failed: %+v", failure)
	}

	hashedKey := crypto.HashAPIKey(key)
	store.keys[hashedKey].Status = models.APIKeyStatusRevoked

	// Cache entry is still valid, so the stale identity is served.
	if _, failure := authn.Authenticate(context.Background(), "Bearer "+key); failure != nil {
		t.Fatalf("expected cached authentication to succeed, got %+v", failure)
	}

	// Once the entry is gone the store is authoritative again.
	cache.Delete(context.Background(), hashedKey)
	if _, failure := authn.Authenticate(context.Background(), "Bearer "+key); failure == nil || failure.Code != CodeInvalidAPIKey {
		t.Fatalf("expected INVALID_API_KEY after cache bypass, got %+v", failure)
	}
}

// Quota enforcement must bite even when identity comes from the cache.
func TestAuthenticateQuotaNeverCached(t *testing.T) {
	store := newFakeStore()
	cache := authcache.NewMemoryCache()
	ledger := newFakeLedger()
	key := seedTenant(t, store, 2)
	authn := newTestAuthenticator(store, cache, ledger)
	yearMonth := usage.CurrentYearMonth(time.Now())

	if _, failure := authn.Authenticate(context.Background(), "Bearer "+key); failure != nil {
		t.Fatalf("priming authentication failed: %+v", failure)
	}

	// Exhaust the quota while the identity stays cached.
	for i := 0; i < 2; i++ {
		if errIncrement := ledger.Increment(context.Background(), 1, yearMonth, false); errIncrement != nil {
			t.Fatalf("increment: %v", errIncrement)
		}
	}
	if _, failure := authn.Authenticate(context.Background(), "Bearer "+key); failure == nil || failure.Code != CodeRateLimitExceeded {
		t.Fatalf("expected RATE_LIMIT_EXCEEDED through the cache, got %+v", failure)
	}
}

func TestAuthenticateDecryptionError(t *testing.T) {
	store := newFakeStore()
	key := seedTenant(t, store, 100)
	store.conns[2].GeminiAPIKeyEncrypted = "corrupted-blob"
	authn := newTestAuthenticator(store, authcache.NewMemoryCache(), newFakeLedger())

	_, failure := authn.Authenticate(context.Background(), "Bearer "+key)
	if failure == nil || failure.Code != CodeDecryptionError {
		t.Fatalf("expected DECRYPTION_ERROR, got %+v", failure)
	}
}

func TestAuthenticateTouchesLastUsed(t *testing.T) {
	store := newFakeStore()
	key := seedTenant(t, store, 100)
	authn := newTestAuthenticator(store, authcache.NewMemoryCache(), newFakeLedger())

	if _, failure := authn.Authenticate(context.Background(), "Bearer "+key); failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}

	deadline := time.Now().Add(time.Second)
	for {
		store.mu.Lock()
		touched := len(store.touched)
		store.mu.Unlock()
		if touched > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("last-used touch never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
