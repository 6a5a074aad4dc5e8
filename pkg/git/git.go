// Package git wraps the git binary for the fixed set of subcommands gasgit
// uses. Git is only ever invoked as a subprocess; no repository internals
// are read directly.
//
// Every invocation returns a Result capturing the exit code and output, and
// the mapping from exit code to outcome lives in one method per subcommand
// rather than being scattered through the callers.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/gasgit/gasgit/pkg/errors"
)

// Result captures one git invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes git commands in a fixed working directory.
type Runner struct {
	dir string
}

// NewRunner returns a Runner rooted at dir. The directory doesn't have to be
// a repository yet; Init creates one.
func NewRunner(dir string) *Runner {
	return &Runner{dir: dir}
}

// Dir returns the runner's working directory.
func (r *Runner) Dir() string {
	return r.dir
}

// run executes git with the given arguments. A non-zero exit is not an
// error at this layer; callers map exit codes to outcomes per subcommand.
// The returned error covers only spawn failures (git missing, context
// cancelled).
func (r *Runner) run(ctx context.Context, stdin string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return res, nil
		}
		return res, errors.WithContext(err, fmt.Sprintf("git %s", strings.Join(args, " ")))
	}
	return res, nil
}

// fail converts a non-zero Result into a descriptive error.
func fail(args string, res Result) error {
	out := strings.TrimSpace(res.Stderr)
	if out == "" {
		out = strings.TrimSpace(res.Stdout)
	}
	return errors.New(fmt.Sprintf("git %s exited %d: %s", args, res.ExitCode, out))
}

// Init initializes a repository. Running it on an existing repository is a
// no-op, so callers can use it idempotently.
func (r *Runner) Init(ctx context.Context) error {
	res, err := r.run(ctx, "", "init")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fail("init", res)
	}
	return nil
}

// CheckoutNewBranch creates and checks out the branch. If the branch already
// exists, it's checked out as-is.
func (r *Runner) CheckoutNewBranch(ctx context.Context, branch string) error {
	res, err := r.run(ctx, "", "checkout", "-b", branch)
	if err != nil {
		return err
	}
	if res.ExitCode == 0 {
		return nil
	}

	// "already exists" means a previous run created it; plain checkout.
	if strings.Contains(res.Stderr, "already exists") {
		res, err = r.run(ctx, "", "checkout", branch)
		if err != nil {
			return err
		}
		if res.ExitCode == 0 {
			return nil
		}
	}
	return fail("checkout -b "+branch, res)
}

// RemoteAdd registers a remote. An existing remote with the same name is
// left untouched.
func (r *Runner) RemoteAdd(ctx context.Context, name, url string) error {
	res, err := r.run(ctx, "", "remote", "add", name, url)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && !strings.Contains(res.Stderr, "already exists") {
		return fail("remote add", res)
	}
	return nil
}

// AddAll stages every change in the working tree.
func (r *Runner) AddAll(ctx context.Context) error {
	res, err := r.run(ctx, "", "add", "-A")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fail("add -A", res)
	}
	return nil
}

// Commit commits the staged changes. It returns false without error when
// there was nothing to commit.
func (r *Runner) Commit(ctx context.Context, message string) (bool, error) {
	res, err := r.run(ctx, "", "commit", "-m", message)
	if err != nil {
		return false, err
	}

	switch {
	case res.ExitCode == 0:
		return true, nil
	case strings.Contains(res.Stdout, "nothing to commit"),
		strings.Contains(res.Stdout, "nothing added to commit"):
		return false, nil
	default:
		return false, fail("commit", res)
	}
}

// RevParse resolves a ref to a commit hash. ok is false when the ref
// doesn't resolve (e.g. HEAD in an unborn repository).
func (r *Runner) RevParse(ctx context.Context, ref string) (hash string, ok bool, err error) {
	res, err := r.run(ctx, "", "rev-parse", "--verify", ref)
	if err != nil {
		return "", false, err
	}
	if res.ExitCode != 0 {
		return "", false, nil
	}
	return strings.TrimSpace(res.Stdout), true, nil
}

// ResetHard resets the working tree and HEAD to the given ref.
func (r *Runner) ResetHard(ctx context.Context, ref string) error {
	res, err := r.run(ctx, "", "reset", "--hard", ref)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fail("reset --hard "+ref, res)
	}
	return nil
}

// StatusPorcelain returns the porcelain status lines for the working tree.
func (r *Runner) StatusPorcelain(ctx context.Context) ([]string, error) {
	res, err := r.run(ctx, "", "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fail("status --porcelain", res)
	}

	trimmed := strings.TrimSpace(res.Stdout)
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// UnmergedPaths returns the paths left in conflict state after a merge or
// patch application.
func (r *Runner) UnmergedPaths(ctx context.Context) ([]string, error) {
	lines, err := r.StatusPorcelain(ctx)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range lines {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		// Unmerged states per git-status(1): DD, AU, UD, UA, DU, AA, UU.
		if strings.ContainsAny(code, "U") || code == "AA" || code == "DD" {
			paths = append(paths, line[3:])
		}
	}
	return paths, nil
}
