// Package profile persists the single user-profile record backing a
// session. Absence of the record means "no active profile".
package profile

import (
	"encoding/json"
	"fmt"
	"os"
)

// Record is the onboarding data for the active user.
type Record struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	DOB        string `json:"dob"` // YYYY-MM-DD
	BirthTime  string `json:"birthTime,omitempty"`
	BirthPlace string `json:"birthPlace,omitempty"`
}

// Store reads and writes one JSON record at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store persisting at the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the active record, or nil if none exists. A corrupted
// record is treated as absent and removed.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: read: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		_ = os.Remove(s.path)
		return nil, nil
	}
	return &rec, nil
}

// Save writes the record, replacing any previous one.
func (s *Store) Save(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("profile: write: %w", err)
	}
	return nil
}

// Delete removes the record. Deleting an absent record is not an error.
func (s *Store) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("profile: delete: %w", err)
	}
	return nil
}
