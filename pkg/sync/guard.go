package sync

import (
	"os"
	"time"

	"github.com/gasgit/gasgit/pkg/errors"
)

// CheckInSync is the optimistic concurrency guard for single-file writes. It
// rejects a write when the remote copy changed after the local copy was last
// written, before any content is transmitted.
//
// A missing local file passes the check: the write is creating the file, so
// there is no older local state to protect.
func CheckInSync(localPath, remoteName string, remoteUpdate time.Time) error {
	info, err := os.Stat(localPath)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.WithContext(err, "stat local copy")
	}

	if remoteUpdate.After(info.ModTime()) {
		return errors.StaleWriteError{Path: remoteName}
	}
	return nil
}
