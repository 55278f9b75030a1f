package storage

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// SchemaVersion is the layout version of the persisted cart snapshot.
// Bump the major version when LineItem's JSON shape changes incompatibly.
const SchemaVersion = "v1.0.0"

// CheckSchema reports whether the snapshot in s can be read by this build.
//
// A missing version is treated as compatible (first run, or a snapshot
// written before versioning). A stored version with a different major, or
// one that is not valid semver, is incompatible.
func CheckSchema(s Store) (compatible bool, stored string, err error) {
	stored, ok, err := s.Get(KeySchema)
	if err != nil {
		return false, "", fmt.Errorf("reading schema version: %w", err)
	}
	if !ok || stored == "" {
		return true, "", nil
	}
	if !semver.IsValid(stored) {
		return false, stored, nil
	}
	return semver.Major(stored) == semver.Major(SchemaVersion), stored, nil
}

// StampSchema records SchemaVersion in s.
func StampSchema(s Store) error {
	if err := s.Set(KeySchema, SchemaVersion); err != nil {
		return fmt.Errorf("writing schema version: %w", err)
	}
	return nil
}
