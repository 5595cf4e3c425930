package domain

import "github.com/google/uuid"

// IDGenerator produces unique string identifiers.
type IDGenerator func() string

// GenerateID creates a unique, time-sortable ID (UUIDv7).
func GenerateID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// PrefixedIDs wraps gen and prepends prefix to every ID, e.g. "media_".
func PrefixedIDs(prefix string, gen IDGenerator) IDGenerator {
	if gen == nil {
		gen = GenerateID
	}
	return func() string {
		return prefix + gen()
	}
}
