package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyIndex_Suggest(t *testing.T) {
	_, projects := loadTree(t, map[string]string{
		"A/A.csproj": project("    <OutputPath>bin</OutputPath>\n    <AssemblyName>A</AssemblyName>\n"),
		"B/B.csproj": project("    <WarningLevel>4</WarningLevel>\n    <OutDir>out</OutDir>\n"),
	})
	idx := NewPropertyIndex()
	idx.Rebuild(projects)

	got := idx.Suggest("outputpth", 0)
	require.NotEmpty(t, got)
	assert.Equal(t, "OutputPath", got[0].Name)
	for _, s := range got {
		assert.NotEqual(t, "AssemblyName", s.Name)
		assert.NotEqual(t, "WarningLevel", s.Name)
	}

	got = idx.Suggest("Assembly", 0)
	require.NotEmpty(t, got)
	assert.Equal(t, "AssemblyName", got[0].Name, "substring matches always qualify")

	assert.Len(t, idx.Suggest("outputpth", 1), 1)
	assert.Empty(t, idx.Suggest("  ", 5))
	assert.Empty(t, idx.Suggest("TreatWarningsAsErrorsXYZ", 5))
}
