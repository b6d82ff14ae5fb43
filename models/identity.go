package models

// CredentialKind distinguishes how an identity was established
type CredentialKind string

const (
	CredentialPassword  CredentialKind = "password"
	CredentialFederated CredentialKind = "federated"
)

// Profile is a normalized identity asserted by the federated provider.
// Subject is the provider-scoped immutable identifier.
type Profile struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}
