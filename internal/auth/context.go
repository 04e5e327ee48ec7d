package auth

// Context is the product of a successful authentication. It lives for one
// request and is never cached or persisted: the decrypted upstream key must
// not outlive the request that needed it.
type Context struct {
	User       UserInfo
	Connection ConnectionInfo
	APIKeyID   uint64
	Usage      UsageSnapshot
}

// UserInfo identifies the authenticated tenant.
type UserInfo struct {
	ID    uint64
	Email string
	Plan  string
}

// ConnectionInfo carries the decrypted upstream credential for this request.
type ConnectionInfo struct {
	ID              uint64
	GeminiAPIKey    string
	DefaultCorpusID string
}

// UsageSnapshot reports quota standing at authentication time. Remaining is
// negative-free: unlimited plans report Limit and Remaining of -1.
type UsageSnapshot struct {
	Current   int64
	Limit     int64
	Remaining int64
}
