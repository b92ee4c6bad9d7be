package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapLine_Wraps_On_Word_Boundaries(t *testing.T) {
	req := require.New(t)

	req.Equal([]string{""}, WrapLine("", 10))
	req.Equal([]string{"short"}, WrapLine("short", 10))
	req.Equal([]string{"one two", "three"}, WrapLine("one two three", 8))

	// A word longer than the width stays whole on its own line
	req.Equal([]string{"tiny", "enormousword"}, WrapLine("tiny enormousword", 6))

	for _, line := range WrapLine(strings.Repeat("word ", 50), 70) {
		req.LessOrEqual(len(line), 70)
	}
}

func TestLoadMotd_Missing_File_Means_No_Motd(t *testing.T) {
	req := require.New(t)
	req.Nil(LoadMotd(""))
	req.Nil(LoadMotd(filepath.Join(t.TempDir(), "absent.txt")))
}

func TestLoadMotd_Reads_And_Wraps(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "motd.txt")
	content := "Welcome to the relay\n\n" + strings.Repeat("chat ", 20)
	req.NoError(os.WriteFile(path, []byte(content), 0o644))

	lines := LoadMotd(path)
	req.Equal("Welcome to the relay", lines[0])
	req.Equal("", lines[1])
	req.Greater(len(lines), 3)
	for _, line := range lines {
		req.LessOrEqual(len(line), 70)
	}
}

func TestLoadWords_Skips_Blanks_And_Comments(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "words.txt")
	req.NoError(os.WriteFile(path, []byte("badword\n\n# a comment\nworse\n"), 0o644))

	words, err := LoadWords(path)
	req.NoError(err)
	req.Equal([]string{"badword", "worse"}, words)
}

func TestCharacterRune_Accepts_Exactly_One_Character(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("*")
	req.NoError(err)
	req.Equal('*', r)

	_, err = CharacterRune("")
	req.Error(err)
	_, err = CharacterRune("**")
	req.Error(err)
}
