// Package main is the entry point of go-oidc-users.
// The start command runs a Fiber web service that authenticates API requests
// with OpenID Connect bearer tokens, maps token claims onto local users and
// AD groups stored with gorm and accepts OIDC back-channel logout tokens.
package main
