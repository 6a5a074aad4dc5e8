package merge

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasgit/gasgit/pkg/git"
	"github.com/gasgit/gasgit/pkg/transform"
)

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

func setupRepo(t *testing.T) *git.Runner {
	requireGit(t)
	setGitIdentity(t)

	r := git.NewRunner(t.TempDir())
	require.NoError(t, r.Init(context.Background()))
	require.NoError(t, r.CheckoutNewBranch(context.Background(), "main"))
	return r
}

func commitFile(t *testing.T, r *git.Runner, name, content string) {
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir(), name), []byte(content), 0644))
	require.NoError(t, r.AddAll(context.Background()))
	_, err := r.Commit(context.Background(), "test: "+name)
	require.NoError(t, err)
}

func readFile(t *testing.T, r *git.Runner, name string) string {
	content, err := os.ReadFile(filepath.Join(r.Dir(), name))
	require.NoError(t, err)
	return string(content)
}

func local(path, content string) transform.LocalFile {
	return transform.LocalFile{RelativePath: path, Content: []byte(content)}
}

func TestThreeWayNewFiles(t *testing.T) {
	r := setupRepo(t)
	engine := &threeWayEngine{git: r}

	res, err := engine.Merge(context.Background(), []transform.LocalFile{
		local("utils.js", "function f(){}\n"),
		local("lib/helpers.js", "function g(){}\n"),
	})
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"utils.js", "lib/helpers.js"}, res.Written)
	assert.Empty(t, res.Conflicts)

	assert.Equal(t, "function f(){}\n", readFile(t, r, "utils.js"))
	assert.Equal(t, "function g(){}\n", readFile(t, r, "lib/helpers.js"))
}

func TestThreeWayUnchanged(t *testing.T) {
	r := setupRepo(t)
	commitFile(t, r, "utils.js", "function f(){}\n")

	engine := &threeWayEngine{git: r}
	res, err := engine.Merge(context.Background(), []transform.LocalFile{
		local("utils.js", "function f(){}\n"),
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"utils.js"}, res.Unchanged)
	assert.Empty(t, res.Written)
	assert.Empty(t, res.Conflicts)
}

// With no retained last-synced snapshot, the merge base is approximated by
// the current local content, so a diverged file resolves to the remote side.
// The local version survives only in git history.
func TestThreeWayDivergedRemoteWins(t *testing.T) {
	r := setupRepo(t)
	commitFile(t, r, "utils.js", "local version\n")

	engine := &threeWayEngine{git: r}
	res, err := engine.Merge(context.Background(), []transform.LocalFile{
		local("utils.js", "remote version\n"),
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"utils.js"}, res.Written)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, "remote version\n", readFile(t, r, "utils.js"))
}

func TestWorktreeEngine(t *testing.T) {
	r := setupRepo(t)
	commitFile(t, r, "utils.js", "old\n")
	commitFile(t, r, "keep.js", "local only\n")

	engine := &worktreeEngine{git: r}
	res, err := engine.Merge(context.Background(), []transform.LocalFile{
		local("utils.js", "new\n"),
		local("extra.js", "added remotely\n"),
	})
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"utils.js", "extra.js"}, res.Written)
	assert.Empty(t, res.Conflicts)

	assert.Equal(t, "new\n", readFile(t, r, "utils.js"))
	assert.Equal(t, "added remotely\n", readFile(t, r, "extra.js"))

	// Files absent remotely are left alone; a merge never deletes.
	assert.Equal(t, "local only\n", readFile(t, r, "keep.js"))
}

func TestWorktreeEngineNoChanges(t *testing.T) {
	r := setupRepo(t)
	commitFile(t, r, "utils.js", "same\n")

	engine := &worktreeEngine{git: r}
	res, err := engine.Merge(context.Background(), []transform.LocalFile{
		local("utils.js", "same\n"),
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"utils.js"}, res.Unchanged)
	assert.Empty(t, res.Written)
}

func TestWorktreeEngineUnbornRepoFallsBack(t *testing.T) {
	r := setupRepo(t)

	engine := &worktreeEngine{git: r}
	res, err := engine.Merge(context.Background(), []transform.LocalFile{
		local("utils.js", "function f(){}\n"),
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"utils.js"}, res.Written)
	assert.Equal(t, "function f(){}\n", readFile(t, r, "utils.js"))
}

func TestWorktreeEngineSnapshotsLocalDrift(t *testing.T) {
	r := setupRepo(t)
	commitFile(t, r, "utils.js", "committed\n")

	// Uncommitted drift gets snapshotted before the merge, then the remote
	// side wins; the drift stays recoverable from history.
	require.NoError(t, os.WriteFile(
		filepath.Join(r.Dir(), "utils.js"), []byte("drifted\n"), 0644))

	engine := &worktreeEngine{git: r}
	res, err := engine.Merge(context.Background(), []transform.LocalFile{
		local("utils.js", "remote\n"),
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"utils.js"}, res.Written)
	assert.Equal(t, "remote\n", readFile(t, r, "utils.js"))

	lines, err := r.StatusPorcelain(context.Background())
	assert.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestNewEngine(t *testing.T) {
	r := setupRepo(t)
	assert.NotNil(t, NewEngine(context.Background(), r))
}
