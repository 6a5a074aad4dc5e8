// Package merge reconciles a subtree's local working copy with the remote
// file set.
//
// Two interchangeable strategies exist. The three-way strategy merges one
// file at a time with `git merge-file`; the worktree strategy materializes
// the remote state in a throwaway worktree and applies the resulting diff as
// a single patch. A capability probe on the installed git picks between
// them.
//
// Neither strategy ever reports success for a file whose merge produced
// conflict markers; conflicted paths are surfaced and the file is excluded
// from any later push.
//
// Because the merge base is approximated by the current local content (no
// true last-synced snapshot is retained), a diverged file normally resolves
// to the remote side rather than conflicting: merge-file with base equal to
// the current side can't conflict, and the worktree patch is diffed against
// the tree it's applied to. Conflict markers can only come out of the
// worktree strategy's patch application, when the working tree moves between
// the snapshot commit and the apply.
package merge

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/gasgit/gasgit/pkg/errors"
	"github.com/gasgit/gasgit/pkg/git"
	"github.com/gasgit/gasgit/pkg/transform"
)

// Conflict identifies a file whose merge could not be reconciled. The file
// on disk holds inline conflict markers until the user resolves them.
type Conflict struct {
	Path string
}

// Result summarizes one merge pass over a subtree.
type Result struct {
	// Written are the paths created or updated in the working copy.
	Written []string

	// Unchanged are the paths whose local content already matched the
	// remote.
	Unchanged []string

	// Conflicts are the paths left with conflict markers. They require
	// manual resolution and a re-run.
	Conflicts []Conflict
}

// Engine merges transformed remote files into a local working copy.
type Engine interface {
	Merge(ctx context.Context, files []transform.LocalFile) (Result, error)
}

// NewEngine picks a merge strategy for the working copy behind runner. Git
// installations with worktree support get the patch-based strategy; older
// ones fall back to per-file three-way merges.
func NewEngine(ctx context.Context, runner *git.Runner) Engine {
	if runner.SupportsWorktrees(ctx) {
		return &worktreeEngine{git: runner}
	}
	log.Debug("git lacks worktree support; using per-file three-way merges")
	return &threeWayEngine{git: runner}
}

// threeWayEngine merges one file at a time. Each file moves through a small
// state machine: new remote files are written verbatim, identical files are
// skipped, and diverged files go through `git merge-file`.
//
// The "base" side of the merge is approximated by the current local content;
// no true last-synced snapshot is retained. When the local copy has drifted
// since the last sync this deviates from a textbook three-way merge, which
// matches the historical behavior of the sync rather than fixing it.
type threeWayEngine struct {
	git *git.Runner
}

func (e *threeWayEngine) Merge(ctx context.Context, files []transform.LocalFile) (Result, error) {
	var res Result
	for _, f := range files {
		if err := e.mergeFile(ctx, f, &res); err != nil {
			return Result{}, errors.WithContext(err, "merge "+f.RelativePath)
		}
	}
	return res, nil
}

func (e *threeWayEngine) mergeFile(ctx context.Context, f transform.LocalFile,
	res *Result) error {

	localPath := filepath.Join(e.git.Dir(), filepath.FromSlash(f.RelativePath))

	local, err := os.ReadFile(localPath)
	if os.IsNotExist(err) {
		// No local copy: write the remote content verbatim. No conflict is
		// possible.
		if err := writeFile(localPath, f.Content); err != nil {
			return err
		}
		res.Written = append(res.Written, f.RelativePath)
		return nil
	} else if err != nil {
		return errors.WithContext(err, "read local")
	}

	if bytes.Equal(local, f.Content) {
		res.Unchanged = append(res.Unchanged, f.RelativePath)
		return nil
	}

	// Both sides exist and differ: delegate to git's line merge.
	merged, err := e.threeWay(ctx, localPath, local, f.Content)
	if err != nil {
		return err
	}

	if err := writeFile(localPath, []byte(merged.Content)); err != nil {
		return err
	}

	if merged.Conflicted {
		log.WithField("path", f.RelativePath).Warn("Merge conflict; manual resolution required")
		res.Conflicts = append(res.Conflicts, Conflict{Path: f.RelativePath})
		return nil
	}
	res.Written = append(res.Written, f.RelativePath)
	return nil
}

func (e *threeWayEngine) threeWay(ctx context.Context, localPath string,
	local, remote []byte) (git.MergeFileResult, error) {

	tmpDir, err := os.MkdirTemp("", "gasgit-merge-*")
	if err != nil {
		return git.MergeFileResult{}, errors.WithContext(err, "temp dir")
	}
	defer os.RemoveAll(tmpDir)

	// Base is approximated by the local snapshot; see the engine comment.
	basePath := filepath.Join(tmpDir, "base")
	remotePath := filepath.Join(tmpDir, "remote")
	if err := os.WriteFile(basePath, local, 0600); err != nil {
		return git.MergeFileResult{}, errors.WithContext(err, "write base")
	}
	if err := os.WriteFile(remotePath, remote, 0600); err != nil {
		return git.MergeFileResult{}, errors.WithContext(err, "write remote")
	}

	return e.git.MergeFile(ctx, localPath, basePath, remotePath,
		[3]string{"local", "base", "remote"})
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.WithContext(err, "create directory")
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return errors.WithContext(err, "write file")
	}
	return nil
}
