package sync

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/gasgit/gasgit/pkg/breadcrumb"
	"github.com/gasgit/gasgit/pkg/config"
	"github.com/gasgit/gasgit/pkg/errors"
	"github.com/gasgit/gasgit/pkg/git"
	"github.com/gasgit/gasgit/pkg/merge"
	"github.com/gasgit/gasgit/pkg/remote"
	"github.com/gasgit/gasgit/pkg/transform"
)

// Direction selects which halves of the sync pipeline run.
type Direction string

const (
	// DirectionSync pulls, merges, and pushes.
	DirectionSync Direction = "sync"

	// DirectionPull pulls and merges, but never writes to the remote store.
	DirectionPull Direction = "pull"

	// DirectionPush pushes local content. The pull and merge phases still run
	// first; a blind push could clobber remote edits made since the last sync.
	DirectionPush Direction = "push"
)

// ParseDirection validates a direction flag value.
func ParseDirection(raw string) (Direction, error) {
	switch d := Direction(raw); d {
	case DirectionSync, DirectionPull, DirectionPush:
		return d, nil
	}
	return "", errors.NewFriendlyError(
		"Unknown sync direction %q. Valid directions are sync, pull, and push.", raw)
}

// Options controls one sync run.
type Options struct {
	Direction Direction

	// ForceOverwrite replaces local content with the remote state verbatim,
	// bypassing the merge engine. No conflict is possible.
	ForceOverwrite bool
}

// Result summarizes the sync of one subtree. Err carries the subtree's
// failure, if any; one subtree failing never aborts its siblings.
type Result struct {
	// Subtree is the remote path of the sync unit. Empty for the project root.
	Subtree string

	// Written are the local paths created or updated by the pull phase.
	Written []string

	// Unchanged are the local paths that already matched the remote.
	Unchanged []string

	// Pushed are the remote names written by the push phase.
	Pushed []string

	// Conflicts are the local paths left with conflict markers.
	Conflicts []string

	Err error
}

// Syncer coordinates syncs and single-file writes for a remote project.
type Syncer struct {
	remote remote.Client
	config config.User
	clock  clockwork.Clock
	locks  *lockTable

	// newEngine and runHook are seams for tests.
	newEngine func(ctx context.Context, runner *git.Runner) merge.Engine
	runHook   func(ctx context.Context, dir, command string) error
}

// New returns a Syncer backed by the given remote client and user config.
func New(client remote.Client, cfg config.User) *Syncer {
	return &Syncer{
		remote:    client,
		config:    cfg,
		clock:     clockwork.NewRealClock(),
		locks:     newLockTable(),
		newEngine: merge.NewEngine,
		runHook:   runShellHook,
	}
}

// SyncAll syncs every subtree of the project, shallowest first. Subtree
// failures are recorded in the corresponding Result and do not stop the run;
// the returned error covers only failures that prevent any subtree from
// syncing.
func (s *Syncer) SyncAll(ctx context.Context, projectID string, opts Options) ([]Result, error) {
	files, err := s.remote.List(ctx, projectID)
	if err != nil {
		return nil, errors.RemoteFailureError{Op: "list remote files", Err: err}
	}

	var results []Result
	for _, subtree := range breadcrumb.ListSubtrees(files) {
		res := s.syncSubtree(ctx, projectID, files, subtree, opts)
		if res.Err != nil {
			log.WithError(res.Err).WithField("subtree", displaySubtree(subtree)).
				Warn("Subtree sync failed")
		}
		results = append(results, res)
	}
	return results, nil
}

// SyncOne syncs a single named subtree. Unlike SyncAll, requesting a subtree
// that has no breadcrumb is an error (the project root excepted; a fresh
// project has no breadcrumbs at all yet).
func (s *Syncer) SyncOne(ctx context.Context, projectID, subtree string, opts Options) (Result, error) {
	files, err := s.remote.List(ctx, projectID)
	if err != nil {
		return Result{}, errors.RemoteFailureError{Op: "list remote files", Err: err}
	}

	if subtree != "" {
		if _, err := breadcrumb.Find(files, subtree); err != nil {
			return Result{Subtree: subtree, Err: err}, nil
		}
	}
	return s.syncSubtree(ctx, projectID, files, subtree, opts), nil
}

// syncSubtree runs the full pipeline for one subtree against a remote
// snapshot. All failure paths land in res.Err.
func (s *Syncer) syncSubtree(ctx context.Context, projectID string,
	files []remote.File, subtree string, opts Options) (res Result) {

	res.Subtree = subtree

	bc, linked, err := s.findBreadcrumb(files, subtree)
	if err != nil {
		res.Err = err
		return res
	}

	dir := s.workingDir(projectID, subtree)
	release := s.locks.acquire(dir)
	defer release()

	runner, err := s.ensureWorkingCopy(ctx, dir, bc, linked)
	if err != nil {
		res.Err = err
		return res
	}

	// Transform the subtree's remote files up front. Shim metadata is kept
	// aside so the push phase can re-wrap code files the way the remote last
	// stored them.
	subFiles := breadcrumb.FilterToSubtree(files, subtree)
	locals, metaByPath, err := toLocals(subFiles)
	if err != nil {
		res.Err = err
		return res
	}

	// Preserve any local drift in history before the tree is rewritten, so
	// nothing a user typed is ever unrecoverable.
	if err := commitAll(ctx, runner, "gasgit: pre-sync snapshot"); err != nil {
		res.Err = err
		return res
	}

	if opts.ForceOverwrite {
		if err := clearWorkingCopy(dir); err != nil {
			res.Err = err
			return res
		}
		for _, lf := range locals {
			if err := writeLocal(dir, lf); err != nil {
				res.Err = err
				return res
			}
			res.Written = append(res.Written, lf.RelativePath)
		}
	} else {
		engine := s.newEngine(ctx, runner)
		merged, err := engine.Merge(ctx, locals)
		if err != nil {
			res.Err = err
			return res
		}
		res.Written = merged.Written
		res.Unchanged = merged.Unchanged
		for _, c := range merged.Conflicts {
			res.Conflicts = append(res.Conflicts, c.Path)
		}
	}

	// Conflicted subtrees stop here: the markers stay on disk for manual
	// resolution, nothing is committed, and nothing is pushed.
	if len(res.Conflicts) > 0 {
		res.Err = errors.MergeConflictError{Subtree: subtree, Paths: res.Conflicts}
		return res
	}

	if err := commitAll(ctx, runner, "gasgit: sync"); err != nil {
		res.Err = err
		return res
	}

	if opts.Direction == DirectionPull {
		return res
	}

	pushed, err := s.pushSubtree(ctx, projectID, runner, subtree, files, metaByPath)
	if err != nil {
		res.Err = err
		return res
	}
	res.Pushed = pushed

	if linked {
		if err := s.recordLastSync(ctx, projectID, runner, subtree, bc, opts, res); err != nil {
			res.Err = err
		}
	}
	return res
}

// findBreadcrumb resolves the subtree's breadcrumb. The project root is
// allowed to be unlinked (a fresh project carries no breadcrumbs yet); every
// other subtree only exists because a breadcrumb names it.
func (s *Syncer) findBreadcrumb(files []remote.File, subtree string) (breadcrumb.Breadcrumb, bool, error) {
	bc, err := breadcrumb.Find(files, subtree)
	if err == nil {
		return bc, true, nil
	}
	if _, ok := errors.RootCause(err).(errors.NotLinkedError); ok && subtree == "" {
		return breadcrumb.Breadcrumb{Branch: s.config.Branch}, false, nil
	}
	return breadcrumb.Breadcrumb{}, false, err
}

// workingDir maps a subtree to its local working copy. Nested subtrees live
// inside the root working copy at their remote path.
func (s *Syncer) workingDir(projectID, subtree string) string {
	return filepath.Join(s.config.ProjectDir(projectID), filepath.FromSlash(subtree))
}

// ensureWorkingCopy makes sure the subtree's working copy exists and is a
// repository on the right branch. Every step is idempotent, so re-running a
// sync after a partial failure is safe.
func (s *Syncer) ensureWorkingCopy(ctx context.Context, dir string,
	bc breadcrumb.Breadcrumb, linked bool) (*git.Runner, error) {

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.WithContext(err, "create working copy")
	}

	runner := git.NewRunner(dir)
	if err := runner.Init(ctx); err != nil {
		return nil, err
	}

	branch := bc.Branch
	if branch == "" {
		branch = s.config.Branch
	}
	if err := runner.CheckoutNewBranch(ctx, branch); err != nil {
		return nil, err
	}

	if linked && bc.RemoteURL != "" {
		if err := runner.RemoteAdd(ctx, "origin", bc.RemoteURL); err != nil {
			return nil, err
		}
	}
	return runner, nil
}

// toLocals transforms a subtree's remote files to their local form, keeping
// each file's shim metadata keyed by local path. Unsupported remote files are
// skipped, not fatal.
func toLocals(files []remote.File) ([]transform.LocalFile, map[string]transform.ShimMeta, error) {
	var locals []transform.LocalFile
	meta := map[string]transform.ShimMeta{}

	for _, f := range files {
		lf, err := transform.ToLocal(f)
		if err != nil {
			if _, ok := errors.RootCause(err).(errors.UnsupportedFileError); ok {
				log.WithField("name", f.Name).Debug("Skipping unsupported remote file")
				continue
			}
			return nil, nil, err
		}
		locals = append(locals, lf)
		meta[lf.RelativePath] = transform.RemoteShimMeta(f)
	}
	return locals, meta, nil
}

// pushSubtree writes the working copy's files back to the remote store. Files
// whose transformed content already matches the remote are skipped, so a
// no-op sync makes no remote writes.
func (s *Syncer) pushSubtree(ctx context.Context, projectID string, runner *git.Runner,
	subtree string, snapshot []remote.File,
	metaByPath map[string]transform.ShimMeta) ([]string, error) {

	locals, err := localFiles(runner.Dir())
	if err != nil {
		return nil, err
	}

	remoteByName := map[string]string{}
	for _, f := range snapshot {
		remoteByName[f.Name] = f.Content
	}

	var pushed []string
	for _, lf := range locals {
		// The breadcrumb mirror is maintained explicitly after the push.
		if strings.HasPrefix(lf.RelativePath, ".git-gas/") {
			continue
		}

		// Pushing walk-time content for a file that moved since the walk would
		// mark the newer local edit as synced without transmitting it.
		path := filepath.Join(runner.Dir(), filepath.FromSlash(lf.RelativePath))
		if fileChangedSince(path, lf.ModTime) {
			log.WithError(errors.ErrFileChanged).WithField("path", lf.RelativePath).
				Warn("Skipping push; the next sync picks the file up")
			continue
		}

		rf, err := transform.ToRemote(lf, metaByPath[lf.RelativePath])
		if err != nil {
			if _, ok := errors.RootCause(err).(errors.UnsupportedFileError); ok {
				log.WithField("path", lf.RelativePath).Debug("Skipping unsupported local file")
				continue
			}
			return pushed, err
		}

		name := joinName(subtree, rf.Name)
		if current, ok := remoteByName[name]; ok && current == rf.Content {
			continue
		}

		if _, err := s.remote.Write(ctx, projectID, name, rf.Content, rf.Type); err != nil {
			return pushed, errors.RemoteFailureError{Op: "push " + name, Err: err}
		}
		pushed = append(pushed, name)
	}
	return pushed, nil
}

// recordLastSync rewrites the breadcrumb's lastSync metadata remotely and in
// the local mirror. It runs only after a fully successful push.
func (s *Syncer) recordLastSync(ctx context.Context, projectID string, runner *git.Runner,
	subtree string, bc breadcrumb.Breadcrumb, opts Options, res Result) error {

	bc.LastSync = &breadcrumb.LastSync{
		Timestamp:    s.clock.Now().UTC(),
		Direction:    string(opts.Direction),
		FilesChanged: len(res.Written) + len(res.Pushed),
	}

	serialized, err := bc.Serialize()
	if err != nil {
		return err
	}

	name := joinName(subtree, breadcrumb.FileName)
	if _, err := s.remote.Write(ctx, projectID, name, serialized, remote.TypeData); err != nil {
		return errors.RemoteFailureError{Op: "record last sync", Err: err}
	}

	mirror, err := transform.ToLocal(remote.File{
		Name:    breadcrumb.FileName,
		Type:    remote.TypeData,
		Content: serialized,
	})
	if err != nil {
		return err
	}
	if err := writeLocal(runner.Dir(), mirror); err != nil {
		return err
	}
	return commitAll(ctx, runner, "gasgit: record sync metadata")
}

// fileChangedSince reports whether the file's on-disk modification time moved
// past the time recorded when the working copy was walked. A zero seen time
// means no walk-time snapshot exists, so nothing can have drifted from it.
func fileChangedSince(path string, seen time.Time) bool {
	if seen.IsZero() {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().After(seen)
}

// localFiles walks a working copy and returns its files. The .git directory
// is skipped, as is any nested directory with its own repository (a nested
// subtree's working copy; it syncs on its own).
func localFiles(dir string) ([]transform.LocalFile, error) {
	var out []transform.LocalFile
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == dir {
				return nil
			}
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(p, ".git")); err == nil {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		lf := transform.LocalFile{
			RelativePath: filepath.ToSlash(rel),
			Content:      content,
		}
		if info, err := d.Info(); err == nil {
			lf.ModTime = info.ModTime()
		}
		out = append(out, lf)
		return nil
	})
	if err != nil {
		return nil, errors.WithContext(err, "walk working copy")
	}
	return out, nil
}

// clearWorkingCopy empties a working copy ahead of a force overwrite. The
// repository itself and nested working copies are kept; they sync on their
// own.
func clearWorkingCopy(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.WithContext(err, "read working copy")
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if entry.Name() == ".git" {
				continue
			}
			if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
				continue
			}
			if err := clearWorkingCopy(path); err != nil {
				return err
			}
			continue
		}
		if err := os.Remove(path); err != nil {
			return errors.WithContext(err, "clear working copy")
		}
	}
	return nil
}

func writeLocal(dir string, lf transform.LocalFile) error {
	path := filepath.Join(dir, filepath.FromSlash(lf.RelativePath))
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.WithContext(err, "create directory")
	}
	if err := os.WriteFile(path, lf.Content, 0644); err != nil {
		return errors.WithContext(err, "write "+lf.RelativePath)
	}
	return nil
}

func commitAll(ctx context.Context, runner *git.Runner, message string) error {
	if err := runner.AddAll(ctx); err != nil {
		return err
	}
	_, err := runner.Commit(ctx, message)
	return err
}

// joinName attaches the subtree prefix back onto a subtree-relative remote
// name.
func joinName(subtree, rel string) string {
	if subtree == "" {
		return rel
	}
	return subtree + "/" + rel
}

func displaySubtree(subtree string) string {
	if subtree == "" {
		return "<root>"
	}
	return subtree
}
