// Package breadcrumb discovers and models the marker files that declare a
// remote directory as an independently git-synchronized unit.
//
// A breadcrumb is the content of a remote file at `<subtree>/.git/config`,
// stored in git's own INI-like config format. Its presence declares the
// subtree and everything beneath it, up to any nested breadcrumb, as one
// sync unit.
package breadcrumb

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/gasgit/gasgit/pkg/errors"
)

// FileName is the remote name of a breadcrumb, relative to its subtree.
const FileName = ".git/config"

// LastSync records the outcome of the most recent successful sync. It's
// rewritten only after a fully successful push.
type LastSync struct {
	Timestamp    time.Time
	Direction    string
	FilesChanged int
}

// Breadcrumb is the parsed content of a `.git/config` marker file.
type Breadcrumb struct {
	// RemoteURL is the git remote registered in the local working copy.
	RemoteURL string

	// Branch is the branch checked out in the local working copy.
	Branch string

	// LocalSyncPath is the working copy location on the machine that linked
	// the project. Informational; each machine resolves its own path.
	LocalSyncPath string

	// LastSync is the most recent successful sync, if any.
	LastSync *LastSync
}

// Parse reads a breadcrumb from its INI content.
func Parse(content string) (Breadcrumb, error) {
	cfg, err := ini.Load([]byte(content))
	if err != nil {
		return Breadcrumb{}, errors.WithContext(err, "parse breadcrumb")
	}

	var b Breadcrumb
	for _, section := range cfg.Sections() {
		name := section.Name()
		switch {
		case strings.HasPrefix(name, `remote "`):
			b.RemoteURL = section.Key("url").String()
		case strings.HasPrefix(name, `branch "`):
			b.Branch = strings.Trim(strings.TrimPrefix(name, "branch "), `"`)
		case name == "sync":
			b.LocalSyncPath = section.Key("localPath").String()
			b.LastSync = parseLastSync(section)
		}
	}
	return b, nil
}

func parseLastSync(section *ini.Section) *LastSync {
	raw := section.Key("lastSync.timestamp").String()
	if raw == "" {
		return nil
	}

	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}

	changed, _ := strconv.Atoi(section.Key("lastSync.filesChanged").String())
	return &LastSync{
		Timestamp:    ts,
		Direction:    section.Key("lastSync.direction").String(),
		FilesChanged: changed,
	}
}

// Serialize renders the breadcrumb back into git-config INI format.
func (b Breadcrumb) Serialize() (string, error) {
	cfg := ini.Empty()

	remoteSection, err := cfg.NewSection(`remote "origin"`)
	if err != nil {
		return "", errors.WithContext(err, "remote section")
	}
	remoteSection.NewKey("url", b.RemoteURL)

	branch := b.Branch
	if branch == "" {
		branch = "main"
	}
	if _, err := cfg.NewSection(fmt.Sprintf("branch %q", branch)); err != nil {
		return "", errors.WithContext(err, "branch section")
	}

	syncSection, err := cfg.NewSection("sync")
	if err != nil {
		return "", errors.WithContext(err, "sync section")
	}
	if b.LocalSyncPath != "" {
		syncSection.NewKey("localPath", b.LocalSyncPath)
	}
	if b.LastSync != nil {
		syncSection.NewKey("lastSync.timestamp", b.LastSync.Timestamp.Format(time.RFC3339))
		syncSection.NewKey("lastSync.direction", b.LastSync.Direction)
		syncSection.NewKey("lastSync.filesChanged", strconv.Itoa(b.LastSync.FilesChanged))
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return "", errors.WithContext(err, "serialize breadcrumb")
	}
	return buf.String(), nil
}
