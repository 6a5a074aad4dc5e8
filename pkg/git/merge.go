package git

import (
	"context"
)

// MergeFileResult is the outcome of one `git merge-file` invocation.
type MergeFileResult struct {
	// Content is the merged text. When Conflicted is true it contains
	// inline conflict markers.
	Content string

	// Conflicted reports whether the merge left conflict markers.
	Conflicted bool
}

// MergeFile runs a three-way line merge of current/base/other, returning the
// merged content on stdout (-p) rather than modifying any file.
//
// Exit-code mapping per git-merge-file(1): 0 is a clean merge, 1..127 is the
// number of conflicts, anything else is a hard error.
func (r *Runner) MergeFile(ctx context.Context, currentPath, basePath, otherPath string,
	labels [3]string) (MergeFileResult, error) {

	args := []string{"merge-file", "-p"}
	for i, label := range labels {
		if label != "" {
			args = append(args, "-L", label)
		} else {
			args = append(args, "-L", [3]string{"local", "base", "remote"}[i])
		}
	}
	args = append(args, currentPath, basePath, otherPath)

	res, err := r.run(ctx, "", args...)
	if err != nil {
		return MergeFileResult{}, err
	}

	switch {
	case res.ExitCode == 0:
		return MergeFileResult{Content: res.Stdout}, nil
	case res.ExitCode > 0 && res.ExitCode < 128:
		return MergeFileResult{Content: res.Stdout, Conflicted: true}, nil
	default:
		return MergeFileResult{}, fail("merge-file", res)
	}
}

// WorktreeAdd materializes a detached worktree at the given commit.
func (r *Runner) WorktreeAdd(ctx context.Context, path, commit string) error {
	res, err := r.run(ctx, "", "worktree", "add", "--detach", path, commit)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fail("worktree add", res)
	}
	return nil
}

// WorktreeRemove discards a worktree, forcing removal of any local changes
// it still holds.
func (r *Runner) WorktreeRemove(ctx context.Context, path string) error {
	res, err := r.run(ctx, "", "worktree", "remove", "--force", path)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fail("worktree remove", res)
	}
	return nil
}

// DiffCached returns the staged changes as a single patch.
func (r *Runner) DiffCached(ctx context.Context) (string, error) {
	res, err := r.run(ctx, "", "diff", "--cached", "--binary")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fail("diff --cached", res)
	}
	return res.Stdout, nil
}

// Apply3Way applies a patch to the working tree with three-way fallback.
// ok is false when the apply left conflicts (or could not apply); callers
// inspect the working tree state to tell the two apart.
func (r *Runner) Apply3Way(ctx context.Context, patch string) (ok bool, err error) {
	res, err := r.run(ctx, patch, "apply", "--3way")
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}
