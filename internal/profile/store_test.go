package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// StoreSuite exercises profile storage against a temp directory.
type StoreSuite struct {
	suite.Suite
	tempDir string
	store   *Store
}

func (s *StoreSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	// The memory dir is deliberately absent so first use creates it.
	s.store = NewStore(filepath.Join(s.tempDir, "memory", "profile.md"))
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

// TestLoadFresh verifies a fresh environment yields empty text, no error.
func (s *StoreSuite) TestLoadFresh() {
	content, err := s.store.Load()
	s.NoError(err)
	s.Equal("", content)
}

// TestSaveLoadRoundtrip verifies save then load returns exactly the input.
func (s *StoreSuite) TestSaveLoadRoundtrip() {
	tests := []struct {
		name string
		text string
	}{
		{name: "simple", text: "hello"},
		{name: "empty", text: ""},
		{name: "multiline markdown", text: "# User Profile\n\n## Interests\n- Go\n- SQLite\n"},
		{name: "non-ascii", text: "héllo wörld — 日本語\n"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Require().NoError(s.store.Save(tt.text))
			content, err := s.store.Load()
			s.NoError(err)
			s.Equal(tt.text, content)
		})
	}
}

// TestSaveCreatesDirectory verifies the parent dir is created on demand.
func (s *StoreSuite) TestSaveCreatesDirectory() {
	s.Require().NoError(s.store.Save("x"))
	info, err := os.Stat(filepath.Dir(s.store.Path()))
	s.NoError(err)
	s.True(info.IsDir())

	// Second save is fine with the dir already present.
	s.NoError(s.store.Save("y"))
}

// TestSaveLeavesNoTempFile verifies the tmp+rename write cleans up.
func (s *StoreSuite) TestSaveLeavesNoTempFile() {
	s.Require().NoError(s.store.Save("content"))
	_, err := os.Stat(s.store.Path() + ".tmp")
	s.True(os.IsNotExist(err))
}

// TestClear resets to the skeleton.
func (s *StoreSuite) TestClear() {
	s.Require().NoError(s.store.Save("old content"))
	s.Require().NoError(s.store.Clear())

	content, err := s.store.Load()
	s.NoError(err)
	s.Equal(DefaultSkeleton, content)
	s.Contains(content, "## Personal Information")
	s.Contains(content, "## Interests")
	s.Contains(content, "## Current Projects")
	s.Contains(content, "## Preferences")
}

func TestIsBlank(t *testing.T) {
	tests := []struct {
		name    string
		content string
		blank   bool
	}{
		{name: "empty", content: "", blank: true},
		{name: "whitespace only", content: "  \n\t\n", blank: true},
		{name: "text", content: "hi", blank: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blank, IsBlank(tt.content))
		})
	}
}
