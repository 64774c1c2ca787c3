package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullInfo(t *testing.T) {
	info := FullInfo()
	assert.True(t, strings.HasPrefix(info, "msbrefactor "+Version))
	assert.Contains(t, info, "commit: ")
	assert.Contains(t, info, "built: ")
	assert.Equal(t, Version, Info())
}

func TestStampPrefersLdflags(t *testing.T) {
	oldCommit, oldDate := GitCommit, BuildDate
	t.Cleanup(func() { GitCommit, BuildDate = oldCommit, oldDate })

	GitCommit, BuildDate = "abc123", "2024-01-02"
	commit, date := stamp()
	assert.Equal(t, "abc123", commit)
	assert.Equal(t, "2024-01-02", date)
}

func TestBuildIDIsStable(t *testing.T) {
	id := BuildID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, BuildID())
}
