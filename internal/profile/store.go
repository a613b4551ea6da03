// Package profile provides storage for the user profile document.
//
// The profile is a single markdown file, opaque to this layer. It is
// overwritten wholesale on every update and never deleted by recall.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSkeleton is the profile created on first use. Updates always
// start from this shape so the model never revises a blank slate.
const DefaultSkeleton = `# User Profile

## Personal Information
- (nothing recorded yet)

## Interests
- (nothing recorded yet)

## Current Projects
- (nothing recorded yet)

## Preferences
- (nothing recorded yet)
`

// Store reads and writes the profile document at a fixed path.
// All other components go through Store; nothing touches the file directly.
type Store struct {
	path string
}

// NewStore creates a store for the profile at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the profile file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the profile contents. A missing file is not an error;
// it yields an empty string so callers can treat "no profile yet" and
// "empty profile" the same way.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read profile: %w", err)
	}
	return string(data), nil
}

// Save replaces the profile with text, creating the containing
// directory if needed. The write goes through a tmp file and rename so
// a crash mid-write never leaves a truncated profile behind.
func (s *Store) Save(text string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o600); err != nil {
		return fmt.Errorf("write tmp profile: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace profile: %w", err)
	}
	return nil
}

// Clear resets the profile to the default skeleton.
func (s *Store) Clear() error {
	return s.Save(DefaultSkeleton)
}

// IsBlank reports whether content carries no profile text.
func IsBlank(content string) bool {
	return strings.TrimSpace(content) == ""
}
