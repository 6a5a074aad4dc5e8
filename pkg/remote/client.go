package remote

import "context"

// Client is the interface to the remote project store. Implementations make
// arbitrary network calls and are assumed to be fallible; callers treat any
// error as a failure of the current sync phase.
//
// Write and Delete return the full updated file list, which saves a List
// round trip after a mutation.
type Client interface {
	// List returns all files in the project.
	List(ctx context.Context, projectID string) ([]File, error)

	// Write creates or replaces the named file and returns the updated list.
	Write(ctx context.Context, projectID, name, content string, typ FileType) ([]File, error)

	// Delete removes the named file and returns the updated list.
	Delete(ctx context.Context, projectID, name string) ([]File, error)
}
