package errors

import (
	"fmt"
	"strings"
)

// ErrFileChanged signals that a file's contents changed while it was being
// synced. The push for that file is skipped and picked up on the next run.
var ErrFileChanged = New("file contents changed during sync")

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// NotLinkedError is returned when a path has no git breadcrumb. gasgit never
// creates breadcrumbs on its own, so the user has to link the project first.
type NotLinkedError struct {
	Path string
}

func (err NotLinkedError) Error() string {
	return err.FriendlyMessage()
}

func (err NotLinkedError) FriendlyMessage() string {
	path := err.Path
	if path == "" {
		path = "the project root"
	}
	return fmt.Sprintf("%s is not git-linked.\n"+
		"Write a .git/config breadcrumb to the remote project (or run the "+
		"link flow manually) before syncing.", path)
}

// StaleWriteError is returned by the optimistic concurrency guard when the
// remote copy of a file changed after the local copy was last written. The
// write is rejected before any content is transmitted.
type StaleWriteError struct {
	Path string
}

func (err StaleWriteError) Error() string {
	return err.FriendlyMessage()
}

func (err StaleWriteError) FriendlyMessage() string {
	return fmt.Sprintf("%q changed remotely after your local copy was written.\n"+
		"Run `gasgit sync` to pull the remote change, then retry the write.",
		err.Path)
}

// MergeConflictError is returned when merging left conflict markers in one or
// more files. Conflicted files are never pushed.
type MergeConflictError struct {
	Subtree string
	Paths   []string
}

func (err MergeConflictError) Error() string {
	return err.FriendlyMessage()
}

func (err MergeConflictError) FriendlyMessage() string {
	return fmt.Sprintf("Merge conflicts in %d file(s):\n  %s\n"+
		"Resolve the conflict markers and re-run `gasgit sync`.",
		len(err.Paths), strings.Join(err.Paths, "\n  "))
}

// RemoteFailureError wraps a network or API failure talking to the remote
// store. Retries have already been exhausted by the time one surfaces.
type RemoteFailureError struct {
	Op  string
	Err error
}

func (err RemoteFailureError) Error() string {
	return fmt.Sprintf("%s: %v", err.Op, err.Err)
}

func (err RemoteFailureError) Unwrap() error {
	return err.Err
}

func (err RemoteFailureError) FriendlyMessage() string {
	return fmt.Sprintf("Failed to %s: %v.\n"+
		"Check your network connection and the configured endpoint, then retry.",
		err.Op, err.Err)
}

// RollbackFailureError is returned when a remote push failed and the local
// rollback also failed. This is the one state gasgit can't recover from on
// its own, so the message names the stranded commit and the exact commands
// to recover.
type RollbackFailureError struct {
	Commit      string
	RollbackErr error
}

func (err RollbackFailureError) Error() string {
	return err.FriendlyMessage()
}

func (err RollbackFailureError) FriendlyMessage() string {
	return fmt.Sprintf("Manual recovery required.\n"+
		"The remote push failed, and rolling back the local commit %s also "+
		"failed: %v.\n"+
		"To recover, inspect the working tree and run:\n"+
		"  git reset --hard %s~1\n"+
		"then re-run the write once the tree is clean.",
		err.Commit, err.RollbackErr, err.Commit)
}

// UnsupportedFileError is returned by the content transformer when a local
// file can't be represented remotely (e.g. an unknown extension). Callers
// treat it as a signal to skip the file rather than fail the sync.
type UnsupportedFileError struct {
	Path string
}

func (err UnsupportedFileError) Error() string {
	return fmt.Sprintf("unsupported local file: %q", err.Path)
}
