package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasgit/gasgit/pkg/breadcrumb"
	"github.com/gasgit/gasgit/pkg/config"
	"github.com/gasgit/gasgit/pkg/errors"
	"github.com/gasgit/gasgit/pkg/git"
	"github.com/gasgit/gasgit/pkg/merge"
	"github.com/gasgit/gasgit/pkg/remote"
	"github.com/gasgit/gasgit/pkg/transform"
)

const projectID = "proj"

var testTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func requireGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}
}

func setGitIdentity(t *testing.T) {
	t.Setenv("GIT_AUTHOR_NAME", "gasgit-test")
	t.Setenv("GIT_AUTHOR_EMAIL", "gasgit-test@localhost")
	t.Setenv("GIT_COMMITTER_NAME", "gasgit-test")
	t.Setenv("GIT_COMMITTER_EMAIL", "gasgit-test@localhost")
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
}

func newTestSyncer(t *testing.T) (*Syncer, *remote.Fake, config.User) {
	requireGit(t)
	setGitIdentity(t)

	fake := remote.NewFake()
	fake.Now = func() time.Time { return testTime }

	cfg := config.User{SyncDir: t.TempDir(), Branch: "main"}
	s := New(fake, cfg)
	s.clock = clockwork.NewFakeClockAt(testTime)
	return s, fake, cfg
}

func wrapped(body string) string {
	return transform.WrapModule(body, transform.ShimMeta{})
}

func readLocal(t *testing.T, cfg config.User, rel string) string {
	content, err := os.ReadFile(
		filepath.Join(cfg.ProjectDir(projectID), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(content)
}

func writeLocalFile(t *testing.T, cfg config.User, rel, content string) {
	path := filepath.Join(cfg.ProjectDir(projectID), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// A fresh project pulled with direction pull produces the unwrapped module
// body locally, with zero conflicts and zero remote writes.
func TestSyncFreshProjectPullOnly(t *testing.T) {
	s, fake, cfg := newTestSyncer(t)

	body := "function f(){}\n"
	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped(body), Position: 0},
	})

	results, err := s.SyncAll(context.Background(), projectID,
		Options{Direction: DirectionPull})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Conflicts)
	assert.Empty(t, res.Pushed)
	assert.Equal(t, body, readLocal(t, cfg, "utils.js"))
}

// Syncing an already in-sync project makes no remote writes: every local
// file transforms back to exactly the remote content.
func TestSyncNoopMakesNoRemoteWrites(t *testing.T) {
	s, fake, _ := newTestSyncer(t)

	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("function f(){}\n"), Position: 0},
		{Name: "appsscript", Type: remote.TypeData, Content: `{"timeZone":"Etc/UTC"}`, Position: 1},
	})

	for i := 0; i < 2; i++ {
		results, err := s.SyncAll(context.Background(), projectID,
			Options{Direction: DirectionSync})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.NoError(t, results[0].Err)
		assert.Empty(t, results[0].Pushed, "pass %d", i)
	}

	f, ok := fake.Get(projectID, "utils")
	require.True(t, ok)
	assert.Equal(t, wrapped("function f(){}\n"), f.Content)
}

// A push-only sync of a local-only README.md creates the remote README as
// markup. Push-only still pulls first, so the remote utils file lands
// locally too.
func TestSyncPushOnlyCreatesNewRemoteFiles(t *testing.T) {
	s, fake, cfg := newTestSyncer(t)

	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("function f(){}\n"), Position: 0},
	})

	require.NoError(t, os.MkdirAll(cfg.ProjectDir(projectID), 0750))
	writeLocalFile(t, cfg, "README.md", "# Title")
	writeLocalFile(t, cfg, "helper.js", "function h(){}\n")

	results, err := s.SyncAll(context.Background(), projectID,
		Options{Direction: DirectionPush})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.NoError(t, res.Err)
	assert.ElementsMatch(t, []string{"README", "helper"}, res.Pushed)

	readme, ok := fake.Get(projectID, "README")
	require.True(t, ok)
	assert.Equal(t, remote.TypeMarkup, readme.Type)
	assert.Contains(t, readme.Content, ">Title</h1>")

	helper, ok := fake.Get(projectID, "helper")
	require.True(t, ok)
	assert.Equal(t, remote.TypeCode, helper.Type)
	body, _, wasWrapped := transform.UnwrapModule(helper.Content)
	assert.True(t, wasWrapped)
	assert.Equal(t, "function h(){}\n", body)

	// The pull half ran too.
	assert.Equal(t, "function f(){}\n", readLocal(t, cfg, "utils.js"))
}

// When local and remote both changed, the remote side wins the merge (the
// merge base is approximated by the local content) and the local drift stays
// recoverable from the pre-sync snapshot commit.
func TestSyncDivergedRemoteWins(t *testing.T) {
	s, fake, cfg := newTestSyncer(t)

	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("v1\n"), Position: 0},
	})

	_, err := s.SyncAll(context.Background(), projectID, Options{Direction: DirectionSync})
	require.NoError(t, err)

	writeLocalFile(t, cfg, "utils.js", "local edit\n")
	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("v2\n"), Position: 0},
	})

	results, err := s.SyncAll(context.Background(), projectID,
		Options{Direction: DirectionSync})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	assert.Equal(t, "v2\n", readLocal(t, cfg, "utils.js"))

	f, ok := fake.Get(projectID, "utils")
	require.True(t, ok)
	assert.Equal(t, wrapped("v2\n"), f.Content)
}

func TestSyncForceOverwrite(t *testing.T) {
	s, fake, cfg := newTestSyncer(t)

	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("remote\n"), Position: 0},
	})

	require.NoError(t, os.MkdirAll(cfg.ProjectDir(projectID), 0750))
	writeLocalFile(t, cfg, "utils.js", "local\n")
	writeLocalFile(t, cfg, "stray.js", "stray\n")

	results, err := s.SyncAll(context.Background(), projectID,
		Options{Direction: DirectionPull, ForceOverwrite: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	assert.Equal(t, "remote\n", readLocal(t, cfg, "utils.js"))

	// Force overwrite clears local-only files instead of merging around them.
	_, err = os.Stat(filepath.Join(cfg.ProjectDir(projectID), "stray.js"))
	assert.True(t, os.IsNotExist(err))
}

type stubEngine struct {
	res merge.Result
}

func (e stubEngine) Merge(context.Context, []transform.LocalFile) (merge.Result, error) {
	return e.res, nil
}

// A conflicted subtree is reported and left for manual resolution: nothing
// is committed for it and nothing is pushed.
func TestSyncConflictStopsSubtree(t *testing.T) {
	s, fake, _ := newTestSyncer(t)

	seeded := wrapped("function f(){}\n")
	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: seeded, Position: 0},
	})

	s.newEngine = func(context.Context, *git.Runner) merge.Engine {
		return stubEngine{res: merge.Result{
			Conflicts: []merge.Conflict{{Path: "utils.js"}},
		}}
	}

	results, err := s.SyncAll(context.Background(), projectID,
		Options{Direction: DirectionSync})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	var conflictErr errors.MergeConflictError
	require.True(t, errors.As(res.Err, &conflictErr))
	assert.Equal(t, []string{"utils.js"}, conflictErr.Paths)
	assert.Empty(t, res.Pushed)

	f, ok := fake.Get(projectID, "utils")
	require.True(t, ok)
	assert.Equal(t, seeded, f.Content)
}

func TestSyncOneNotLinkedSubtree(t *testing.T) {
	s, fake, _ := newTestSyncer(t)

	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("function f(){}\n"), Position: 0},
	})

	res, err := s.SyncOne(context.Background(), projectID, "lib",
		Options{Direction: DirectionSync})
	require.NoError(t, err)

	var notLinked errors.NotLinkedError
	require.True(t, errors.As(res.Err, &notLinked))
	assert.Equal(t, "lib", notLinked.Path)
}

// Breadcrumbed subtrees sync as independent units: the root never claims the
// nested subtree's files, and the nested subtree gets its own working copy,
// branch, and lastSync record.
func TestSyncNestedSubtrees(t *testing.T) {
	s, fake, cfg := newTestSyncer(t)

	crumb, err := breadcrumb.Breadcrumb{
		RemoteURL: "https://example.com/lib.git",
		Branch:    "main",
	}.Serialize()
	require.NoError(t, err)

	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("root\n"), Position: 0},
		{Name: "lib/.git/config", Type: remote.TypeData, Content: crumb, Position: 1},
		{Name: "lib/main", Type: remote.TypeCode, Content: wrapped("lib\n"), Position: 2},
	})

	results, err := s.SyncAll(context.Background(), projectID,
		Options{Direction: DirectionSync})
	require.NoError(t, err)
	require.Len(t, results, 2)

	root, lib := results[0], results[1]
	require.NoError(t, root.Err)
	require.NoError(t, lib.Err)

	assert.Equal(t, "", root.Subtree)
	assert.Equal(t, []string{"utils.js"}, root.Written)

	assert.Equal(t, "lib", lib.Subtree)
	assert.ElementsMatch(t, []string{"main.js", ".git-gas/config"}, lib.Written)

	assert.Equal(t, "lib\n", readLocal(t, cfg, "lib/main.js"))

	// The nested working copy is its own repository.
	_, err = os.Stat(filepath.Join(cfg.ProjectDir(projectID), "lib", ".git"))
	assert.NoError(t, err)

	// The lib breadcrumb's lastSync was rewritten remotely and mirrored
	// locally.
	f, ok := fake.Get(projectID, "lib/.git/config")
	require.True(t, ok)
	assert.Contains(t, f.Content, "lastSync.timestamp")
	assert.Contains(t, f.Content, testTime.Format(time.RFC3339))
	assert.Contains(t, readLocal(t, cfg, "lib/.git-gas/config"), "lastSync.timestamp")
}

// A file whose on-disk mtime moved past the walk-time snapshot is held back
// from the push; the next sync picks it up.
func TestFileChangedSince(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "utils.js")
	require.NoError(t, os.WriteFile(path, []byte("var x;\n"), 0644))
	mtime := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	assert.False(t, fileChangedSince(path, mtime))
	assert.False(t, fileChangedSince(path, mtime.Add(time.Minute)))
	assert.True(t, fileChangedSince(path, mtime.Add(-time.Minute)))

	// No walk-time snapshot, or no file: nothing to compare against.
	assert.False(t, fileChangedSince(path, time.Time{}))
	assert.False(t, fileChangedSince(filepath.Join(t.TempDir(), "gone.js"), mtime))
}

func TestWriteFile(t *testing.T) {
	s, fake, cfg := newTestSyncer(t)

	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("function f(){}\n"), Position: 0},
	})
	_, err := s.SyncAll(context.Background(), projectID, Options{Direction: DirectionSync})
	require.NoError(t, err)

	var hooksRun []string
	s.config.ValidationHooks = []string{"make lint"}
	s.runHook = func(_ context.Context, _, command string) error {
		hooksRun = append(hooksRun, command)
		return nil
	}

	src := filepath.Join(t.TempDir(), "utils.js")
	require.NoError(t, os.WriteFile(src, []byte("function g(){}\n"), 0644))

	require.NoError(t, s.WriteFile(context.Background(), projectID, "utils", src))
	assert.Equal(t, []string{"make lint"}, hooksRun)

	f, ok := fake.Get(projectID, "utils")
	require.True(t, ok)
	body, _, wasWrapped := transform.UnwrapModule(f.Content)
	assert.True(t, wasWrapped)
	assert.Equal(t, "function g(){}\n", body)

	assert.Equal(t, "function g(){}\n", readLocal(t, cfg, "utils.js"))

	// The write was committed, so the working tree is clean.
	runner := git.NewRunner(cfg.ProjectDir(projectID))
	lines, err := runner.StatusPorcelain(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, lines)
}

// When the remote push fails, the local commit is rolled back so HEAD ends
// where it started.
func TestWriteFileRollsBackOnPushFailure(t *testing.T) {
	s, fake, cfg := newTestSyncer(t)

	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("function f(){}\n"), Position: 0},
	})
	_, err := s.SyncAll(context.Background(), projectID, Options{Direction: DirectionSync})
	require.NoError(t, err)

	runner := git.NewRunner(cfg.ProjectDir(projectID))
	before, ok, err := runner.RevParse(context.Background(), "HEAD")
	require.NoError(t, err)
	require.True(t, ok)

	fake.FailWrites = true

	src := filepath.Join(t.TempDir(), "utils.js")
	require.NoError(t, os.WriteFile(src, []byte("function g(){}\n"), 0644))

	err = s.WriteFile(context.Background(), projectID, "utils", src)
	require.Error(t, err)

	var rollbackErr errors.RollbackFailureError
	assert.False(t, errors.As(err, &rollbackErr))

	var remoteErr errors.RemoteFailureError
	assert.True(t, errors.As(err, &remoteErr))

	after, ok, err := runner.RevParse(context.Background(), "HEAD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, after)

	assert.Equal(t, "function f(){}\n", readLocal(t, cfg, "utils.js"))
}

func TestWriteFileStaleGuard(t *testing.T) {
	s, fake, cfg := newTestSyncer(t)

	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("function f(){}\n"), Position: 0},
	})
	_, err := s.SyncAll(context.Background(), projectID, Options{Direction: DirectionSync})
	require.NoError(t, err)

	// The remote copy changes after the local copy was written.
	fake.Seed(projectID, []remote.File{
		{
			Name: "utils", Type: remote.TypeCode,
			Content:    wrapped("function changed(){}\n"),
			Position:   0,
			UpdateTime: time.Now().Add(time.Hour),
		},
	})

	src := filepath.Join(t.TempDir(), "utils.js")
	require.NoError(t, os.WriteFile(src, []byte("function g(){}\n"), 0644))

	err = s.WriteFile(context.Background(), projectID, "utils", src)
	require.Error(t, err)

	var stale errors.StaleWriteError
	assert.True(t, errors.As(err, &stale))

	// Nothing was transmitted or changed locally.
	f, _ := fake.Get(projectID, "utils")
	assert.Equal(t, wrapped("function changed(){}\n"), f.Content)
	assert.Equal(t, "function f(){}\n", readLocal(t, cfg, "utils.js"))
}

func TestWriteFileRefusesUnbornRepo(t *testing.T) {
	s, _, cfg := newTestSyncer(t)

	dir := cfg.ProjectDir(projectID)
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, git.NewRunner(dir).Init(context.Background()))

	src := filepath.Join(t.TempDir(), "utils.js")
	require.NoError(t, os.WriteFile(src, []byte("function g(){}\n"), 0644))

	err := s.WriteFile(context.Background(), projectID, "utils", src)
	require.Error(t, err)
	assert.True(t, strings.Contains(errors.GetPrintableMessage(err), "no synced history"))
}

func TestWriteFileHookFailureReverts(t *testing.T) {
	s, fake, cfg := newTestSyncer(t)

	fake.Seed(projectID, []remote.File{
		{Name: "utils", Type: remote.TypeCode, Content: wrapped("function f(){}\n"), Position: 0},
	})
	_, err := s.SyncAll(context.Background(), projectID, Options{Direction: DirectionSync})
	require.NoError(t, err)

	s.config.ValidationHooks = []string{"make lint"}
	s.runHook = func(context.Context, string, string) error {
		return errors.New("lint failed")
	}

	src := filepath.Join(t.TempDir(), "utils.js")
	require.NoError(t, os.WriteFile(src, []byte("function g(){}\n"), 0644))

	err = s.WriteFile(context.Background(), projectID, "utils", src)
	require.Error(t, err)
	assert.Contains(t, errors.GetPrintableMessage(err), "lint failed")

	// The local change was reverted and nothing was pushed.
	assert.Equal(t, "function f(){}\n", readLocal(t, cfg, "utils.js"))
	f, _ := fake.Get(projectID, "utils")
	assert.Equal(t, wrapped("function f(){}\n"), f.Content)
}
