/*
The sync package orchestrates synchronization between a remote project store
and local git working copies.

A remote project is a flat, position-ordered file list. Breadcrumb marker
files (see the breadcrumb package) partition it into independently-versioned
subtrees, each backed by its own local working copy. For every subtree a sync
runs the same ordered phases:

 1. Ensure the local working copy exists (git init, branch checkout, remote
    registration; all idempotent).
 2. Pull the remote file set and filter it to the subtree.
 3. Merge each file into the working copy (see the merge package).
 4. Commit the merged result if anything changed.
 5. Push every local file back to the remote store, unless the direction is
    pull-only. Push-only still performs the pull and merge first: a blind
    push could silently clobber remote edits made since the last sync.
 6. Rewrite the breadcrumb's lastSync metadata.

Failures are scoped to their subtree. One subtree conflicting or failing to
push never aborts its siblings; the caller receives one Result per subtree
with the subtree's failure, if any, in Result.Err.

Single-file edits skip the full pipeline and go through WriteFile, a
three-phase transaction (validate locally, push remotely, roll back the
local commit if the push fails) guarded by an optimistic concurrency check.

Concurrent operations against the same subtree are serialized by a lock
table keyed by the resolved working copy path. Operations against different
subtrees proceed independently.
*/
package sync
