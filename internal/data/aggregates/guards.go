package aggregates

// RequireVersionMatch validates version equality for optimistic locking flows.
func RequireVersionMatch(current, expected int64) error {
	if expected < 0 {
		return ValidationError("expected version must be >= 0")
	}
	if current != expected {
		return ConflictError("version mismatch")
	}
	return nil
}
