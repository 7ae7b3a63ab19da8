package domain

// IdentityScope identifies one logical account namespace: the combination of
// a cloud/provider name, an OAuth client identifier, and an authority.
// A scope is immutable for the lifetime of the ledger and registry built on it
// and determines the storage keys used against the secret store.
type IdentityScope struct {
	// CloudName is the provider/cloud name (e.g., "microsoft", "microsoft-sovereign").
	CloudName string
	// ClientID is the OAuth client identifier of the consuming application.
	ClientID string
	// Authority is the token authority (tenant) for the scope.
	Authority string
}

// CurrentKey returns the storage key the allow-list lives under.
func (s IdentityScope) CurrentKey() string {
	return "accounts-" + s.CloudName
}

// LegacyKey returns the pre-migration storage key. It is kept in sync with the
// current key until it is retired.
func (s IdentityScope) LegacyKey() string {
	return "accounts-" + s.CloudName + "-" + s.ClientID + "-" + s.Authority
}

// StorageKeys returns the ordered key list for this scope: the current key
// first, the legacy fallback second. The migration path is removed by
// shrinking this list to one key.
func (s IdentityScope) StorageKeys() []string {
	return []string{s.CurrentKey(), s.LegacyKey()}
}

// Validate checks that the scope is fully specified.
func (s IdentityScope) Validate() error {
	if s.CloudName == "" || s.ClientID == "" || s.Authority == "" {
		return ErrInvalidInput
	}
	return nil
}
