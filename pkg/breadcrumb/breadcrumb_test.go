package breadcrumb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	t.Parallel()

	content := `[remote "origin"]
url = https://github.com/acme/scripts.git
[branch "dev"]
[sync]
localPath = /home/dev/gasgit/proj
lastSync.timestamp = 2024-05-01T10:00:00Z
lastSync.direction = sync
lastSync.filesChanged = 3
`

	b, err := Parse(content)
	assert.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/scripts.git", b.RemoteURL)
	assert.Equal(t, "dev", b.Branch)
	assert.Equal(t, "/home/dev/gasgit/proj", b.LocalSyncPath)

	assert.NotNil(t, b.LastSync)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), b.LastSync.Timestamp)
	assert.Equal(t, "sync", b.LastSync.Direction)
	assert.Equal(t, 3, b.LastSync.FilesChanged)
}

func TestParseMinimal(t *testing.T) {
	t.Parallel()

	b, err := Parse("[remote \"origin\"]\nurl = https://example.com/x.git\n")
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/x.git", b.RemoteURL)
	assert.Empty(t, b.Branch)
	assert.Nil(t, b.LastSync)
}

func TestSerializeRoundTrip(t *testing.T) {
	t.Parallel()

	orig := Breadcrumb{
		RemoteURL:     "https://github.com/acme/scripts.git",
		Branch:        "main",
		LocalSyncPath: "/home/dev/gasgit/proj",
		LastSync: &LastSync{
			Timestamp:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Direction:    "push",
			FilesChanged: 7,
		},
	}

	serialized, err := orig.Serialize()
	assert.NoError(t, err)

	parsed, err := Parse(serialized)
	assert.NoError(t, err)
	assert.Equal(t, orig, parsed)
}

func TestSerializeDefaultsBranch(t *testing.T) {
	t.Parallel()

	serialized, err := Breadcrumb{RemoteURL: "https://example.com/x.git"}.Serialize()
	assert.NoError(t, err)

	parsed, err := Parse(serialized)
	assert.NoError(t, err)
	assert.Equal(t, "main", parsed.Branch)
}
