// Package token manages credential acquisition, caching and proactive
// refresh for outbound API clients.
//
// A Cache holds tokens keyed by (tenant, client, flow, scope set) identity
// and answers whether a cached token is still valid, close enough to expiry
// to refresh proactively, or gone. A Manager composes the cache with a
// CredentialProvider and guarantees that a burst of concurrent callers for
// the same key triggers exactly one network refresh; everyone else waits on
// that flight's result.
//
// Token values are secret.Value wrappers, so tokens never appear in logs or
// serialized output.
//
// # Usage
//
//	cache := token.NewCache(token.CacheConfig{RefreshSkew: 5 * time.Minute})
//	mgr := token.NewManager(token.ManagerConfig{Cache: cache, Provider: provider})
//
//	key := token.NewKey("tenant-a", "client-1", "client_credentials", scopes)
//	tok, err := mgr.Token(ctx, key, scopes)
package token
