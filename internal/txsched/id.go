package txsched

import "github.com/google/uuid"

// NewTransactionID returns a fresh random (v4) transaction identifier.
func NewTransactionID() string {
	return uuid.NewString()
}

// GenerateID returns a random identifier with the given prefix, e.g. "dsp-…".
func GenerateID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
