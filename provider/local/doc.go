// Package local provides a bun backed identity provider for go-approval.
//
// It issues the authorization tokens the approval flow reads claims from,
// stores per account custom claims, and supports password accounts plus
// federated sign in with ID tokens verified against a JWKS.
package local
