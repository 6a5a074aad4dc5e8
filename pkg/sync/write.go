package sync

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/gasgit/gasgit/pkg/breadcrumb"
	"github.com/gasgit/gasgit/pkg/errors"
	"github.com/gasgit/gasgit/pkg/git"
	"github.com/gasgit/gasgit/pkg/remote"
	"github.com/gasgit/gasgit/pkg/transform"
)

// WriteFile pushes one source file to the remote store under remoteName as a
// transaction: the content is validated and committed in the local working
// copy first, then written remotely. If the remote write fails, the local
// commit is rolled back so both sides stay consistent; if the rollback itself
// fails, a RollbackFailureError names the stranded commit.
//
// The optimistic concurrency guard rejects the write up front when the remote
// copy changed after the working copy was last written.
func (s *Syncer) WriteFile(ctx context.Context, projectID, remoteName, sourcePath string) error {
	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return errors.WithContext(err, "read source file")
	}

	files, err := s.remote.List(ctx, projectID)
	if err != nil {
		return errors.RemoteFailureError{Op: "list remote files", Err: err}
	}

	subtree := owningSubtree(files, remoteName)
	rel := remoteName
	if subtree != "" {
		rel = strings.TrimPrefix(remoteName, subtree+"/")
	}

	existing := findFile(files, remoteName)
	typ, err := writeFileType(existing, rel, sourcePath)
	if err != nil {
		return err
	}

	// Resolve the remote name to its working copy path via the same naming
	// rules the sync uses, so the write lands where the next sync expects it.
	target, err := transform.ToLocal(remote.File{Name: rel, Type: typ})
	if err != nil {
		return err
	}

	dir := s.workingDir(projectID, subtree)
	targetPath := filepath.Join(dir, filepath.FromSlash(target.RelativePath))

	if existing != nil {
		if err := CheckInSync(targetPath, remoteName, existing.UpdateTime); err != nil {
			return err
		}
	}

	release := s.locks.acquire(dir)
	defer release()

	runner := git.NewRunner(dir)
	prevHead, ok, err := runner.RevParse(ctx, "HEAD")
	if err != nil {
		return err
	}
	if !ok {
		// Without a commit to roll back to, a failed push would leave the
		// working copy in an undefined state.
		return errors.NewFriendlyError(
			"The working copy for %q has no synced history yet.\n"+
				"Run `gasgit sync` once before writing individual files.",
			displaySubtree(subtree))
	}

	prior, priorErr := os.ReadFile(targetPath)
	hadPrior := priorErr == nil

	local := transform.LocalFile{RelativePath: target.RelativePath, Content: content}
	if err := writeLocal(dir, local); err != nil {
		return err
	}

	if err := s.runValidationHooks(ctx, dir); err != nil {
		revertErr := revertLocal(targetPath, prior, hadPrior)
		if revertErr != nil {
			log.WithError(revertErr).Warn("Failed to revert local change after hook failure")
		}
		return err
	}

	if err := runner.AddAll(ctx); err != nil {
		return err
	}
	committed, err := runner.Commit(ctx, "gasgit: write "+remoteName)
	if err != nil {
		return err
	}

	// Hooks may rewrite the file (formatters are the common case), so the
	// pushed content is re-read from the working copy, not the source.
	final, err := os.ReadFile(targetPath)
	if err != nil {
		return errors.WithContext(err, "read committed content")
	}
	local.Content = final

	var meta transform.ShimMeta
	if existing != nil {
		meta = transform.RemoteShimMeta(*existing)
	}
	rf, err := transform.ToRemote(local, meta)
	if err != nil {
		return err
	}

	if _, err := s.remote.Write(ctx, projectID, joinName(subtree, rf.Name), rf.Content, rf.Type); err != nil {
		pushErr := errors.RemoteFailureError{Op: "push " + remoteName, Err: err}
		if !committed {
			return pushErr
		}

		newHead, _, headErr := runner.RevParse(ctx, "HEAD")
		if headErr != nil {
			newHead = "HEAD"
		}
		if rbErr := runner.ResetHard(ctx, prevHead); rbErr != nil {
			return errors.RollbackFailureError{Commit: newHead, RollbackErr: rbErr}
		}
		log.WithField("name", remoteName).Info("Remote write failed; local commit rolled back")
		return pushErr
	}

	log.WithField("name", remoteName).Info("Wrote file to remote project")
	return nil
}

// owningSubtree returns the deepest breadcrumbed subtree that contains the
// remote name. Names outside every breadcrumb belong to the project root.
func owningSubtree(files []remote.File, name string) string {
	best := ""
	for _, subtree := range breadcrumb.ListSubtrees(files) {
		if subtree == "" {
			continue
		}
		if strings.HasPrefix(name, subtree+"/") && len(subtree) > len(best) {
			best = subtree
		}
	}
	return best
}

func findFile(files []remote.File, name string) *remote.File {
	for i := range files {
		if files[i].Name == name {
			return &files[i]
		}
	}
	return nil
}

// writeFileType picks the remote type for a write. An existing remote file
// keeps its type; new files infer it from the name and source extension.
func writeFileType(existing *remote.File, rel, sourcePath string) (remote.FileType, error) {
	if existing != nil {
		return existing.Type, nil
	}
	if rel == "README" {
		return remote.TypeMarkup, nil
	}
	if strings.HasPrefix(rel, ".") {
		// Dotfiles and breadcrumb paths are stored as wrapped code and data
		// respectively; ToLocal and ToRemote sort out which.
		if strings.Contains(rel, "/") {
			return remote.TypeData, nil
		}
		return remote.TypeCode, nil
	}
	if typ, ok := transform.TypeForExtension(path.Ext(sourcePath)); ok {
		return typ, nil
	}
	return "", errors.UnsupportedFileError{Path: sourcePath}
}

func (s *Syncer) runValidationHooks(ctx context.Context, dir string) error {
	for _, hook := range s.config.ValidationHooks {
		if err := s.runHook(ctx, dir, hook); err != nil {
			return errors.NewFriendlyError(
				"Validation hook %q failed:\n%v\n"+
					"The local change was reverted and nothing was pushed.",
				hook, err)
		}
	}
	return nil
}

// revertLocal restores the pre-write state of a file after a hook failure.
func revertLocal(path string, prior []byte, hadPrior bool) error {
	if hadPrior {
		return os.WriteFile(path, prior, 0644)
	}
	return os.Remove(path)
}

// runShellHook executes one validation hook through the shell with the
// working copy as its current directory.
func runShellHook(ctx context.Context, dir, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
