package merge

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/gasgit/gasgit/pkg/errors"
	"github.com/gasgit/gasgit/pkg/git"
	"github.com/gasgit/gasgit/pkg/transform"
)

// worktreeEngine merges by materializing the remote file set in a throwaway
// worktree and applying the resulting diff to the main working tree as one
// patch with three-way fallback.
//
// Compared to per-file merges this costs far fewer subprocess calls, at the
// price of coarser conflict granularity: a single failed hunk blocks the
// whole patch, including otherwise-mergeable files that share it.
type worktreeEngine struct {
	git *git.Runner
}

func (e *worktreeEngine) Merge(ctx context.Context, files []transform.LocalFile) (Result, error) {
	// Snapshot any local drift so the diff has a well-defined parent.
	if err := e.git.AddAll(ctx); err != nil {
		return Result{}, err
	}
	if _, err := e.git.Commit(ctx, "gasgit: pre-sync snapshot"); err != nil {
		return Result{}, err
	}

	head, ok, err := e.git.RevParse(ctx, "HEAD")
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// Unborn repository: nothing to diff against. Every remote file is
		// new, which is exactly the three-way strategy's trivial path.
		fallback := &threeWayEngine{git: e.git}
		return fallback.Merge(ctx, files)
	}

	wtDir, err := os.MkdirTemp("", "gasgit-worktree-*")
	if err != nil {
		return Result{}, errors.WithContext(err, "temp worktree dir")
	}
	defer os.RemoveAll(wtDir)

	// `worktree add` wants to create the directory itself.
	wtPath := filepath.Join(wtDir, "wt")
	if err := e.git.WorktreeAdd(ctx, wtPath, head); err != nil {
		return Result{}, err
	}
	defer func() {
		if err := e.git.WorktreeRemove(ctx, wtPath); err != nil {
			log.WithError(err).Warn("Failed to remove merge worktree")
		}
	}()

	if err := materialize(wtPath, files); err != nil {
		return Result{}, err
	}

	wt := git.NewRunner(wtPath)
	if err := wt.AddAll(ctx); err != nil {
		return Result{}, err
	}
	patch, err := wt.DiffCached(ctx)
	if err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(patch) == "" {
		return Result{Unchanged: relativePaths(files)}, nil
	}

	applied, err := e.git.Apply3Way(ctx, patch)
	if err != nil {
		return Result{}, err
	}

	if applied {
		return Result{Written: patchPaths(patch)}, nil
	}

	// The apply failed. If it left unmerged paths, report them as
	// conflicts; otherwise it's a hard error.
	unmerged, err := e.git.UnmergedPaths(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(unmerged) == 0 {
		return Result{}, errors.New("patch could not be applied to the working tree")
	}

	var res Result
	for _, path := range unmerged {
		res.Conflicts = append(res.Conflicts, Conflict{Path: path})
	}
	return res, nil
}

// materialize writes the remote file set over the worktree's snapshot.
// Local files absent remotely are left in place: a sync never deletes, in
// either direction.
func materialize(wtPath string, files []transform.LocalFile) error {
	for _, f := range files {
		path := filepath.Join(wtPath, filepath.FromSlash(f.RelativePath))
		if err := writeFile(path, f.Content); err != nil {
			return err
		}
	}
	return nil
}

func relativePaths(files []transform.LocalFile) []string {
	var paths []string
	for _, f := range files {
		paths = append(paths, f.RelativePath)
	}
	return paths
}

// patchPaths extracts the touched paths from a unified diff.
func patchPaths(patch string) []string {
	var paths []string
	seen := map[string]bool{}
	for _, line := range strings.Split(patch, "\n") {
		var path string
		if rest, ok := strings.CutPrefix(line, "+++ b/"); ok {
			path = rest
		} else if rest, ok := strings.CutPrefix(line, "--- a/"); ok {
			// Deletions only appear on the a/ side.
			path = rest
		} else {
			continue
		}
		if path != "" && !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}
	return paths
}
