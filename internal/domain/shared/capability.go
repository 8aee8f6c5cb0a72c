package shared

// RequireCapability compares the caller's verified identity with the identity
// stored on a record (sale owner, vesting owner, beneficiary).
func RequireCapability[T comparable](caller, holder T) error {
	if caller != holder {
		return ErrUnauthorized
	}
	return nil
}
