package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSections(t *testing.T) {
	md := "Intro text.\n\n# Guide\n\nWelcome.\n\n## Install\n\nRun it.\n\n```sh\n# not a heading\nmake\n```\n\n## Usage ##\n\nCall it."

	got := Sections(md)
	require.Len(t, got, 4)

	assert.Equal(t, 0, got[0].Level)
	assert.Empty(t, got[0].Heading)
	assert.Equal(t, "Intro text.", got[0].Markdown)

	assert.Equal(t, "Guide", got[1].Heading)
	assert.Equal(t, 1, got[1].Level)
	assert.Equal(t, "# Guide\n\nWelcome.", got[1].Markdown)

	assert.Equal(t, "Install", got[2].Heading)
	assert.Equal(t, 2, got[2].Level)
	assert.Contains(t, got[2].Markdown, "# not a heading")
	assert.Contains(t, got[2].Markdown, "make")

	assert.Equal(t, "Usage", got[3].Heading)
	assert.Equal(t, "## Usage ##\n\nCall it.", got[3].Markdown)
}

func TestSections_NoHeadings(t *testing.T) {
	got := Sections("just a paragraph")
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Level)
	assert.Equal(t, "just a paragraph", got[0].Markdown)
}

func TestSections_Empty(t *testing.T) {
	assert.Empty(t, Sections(""))
	assert.Empty(t, Sections("\n\n  \n"))
}

func TestSections_HashWithoutSpaceIsText(t *testing.T) {
	got := Sections("#hashtag\n\n# Real")
	require.Len(t, got, 2)
	assert.Equal(t, "#hashtag", got[0].Markdown)
	assert.Equal(t, "Real", got[1].Heading)
}
