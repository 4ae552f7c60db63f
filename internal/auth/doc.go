// Package auth verifies bearer JWTs issued by external OpenID Connect providers.
//
// The pieces, leaves first:
//   - KeySource fetches an issuer's JSON Web Key Set through discovery and caches it with a TTL.
//   - Parse, Issuer and Verify decode and verify compact JWTs against a KeySet.
//   - Registry maps issuers from the allow-list to their KeySource and holds the accepted audiences.
//   - Authorization answers scope and AD group questions about verified claims.
//   - Authenticator runs the whole pipeline for an Authorization header:
//     registry, verification, session revocation, scope enforcement and finally
//     identity resolution.
//
// Every verification failure reaches the client as ErrVerificationFailed. The specific
// reason stays available through errors.Is on the returned *AuthError and in the logs.
//
// Usage:
//
//	registry := auth.NewRegistry(cfg.TokenAuth)
//	authenticator := auth.NewAuthenticator(cfg.TokenAuth, registry, revocationStore, resolver)
//	result, err := authenticator.Authenticate(ctx, header)
package auth
