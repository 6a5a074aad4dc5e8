package git

import (
	"context"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/gasgit/gasgit/pkg/errors"
)

// worktreeMinVersion is the first git release with `git worktree`.
var worktreeMinVersion = goversion.Must(goversion.NewVersion("2.5.0"))

// Version returns the installed git version.
func (r *Runner) Version(ctx context.Context) (*goversion.Version, error) {
	res, err := r.run(ctx, "", "--version")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fail("--version", res)
	}

	// Output format: "git version 2.39.0" (possibly with a platform suffix
	// like "2.39.0 (Apple Git-145)").
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(res.Stdout), "git version "))
	if fields := strings.Fields(raw); len(fields) > 0 {
		raw = fields[0]
	}

	parsed, err := goversion.NewVersion(raw)
	if err != nil {
		return nil, errors.WithContext(err, "parse git version")
	}
	return parsed, nil
}

// SupportsWorktrees probes whether the installed git can run the worktree
// merge strategy. An unparseable version is treated as too old rather than
// an error, so the caller falls back to the per-file strategy.
func (r *Runner) SupportsWorktrees(ctx context.Context) bool {
	v, err := r.Version(ctx)
	if err != nil {
		return false
	}
	return v.GreaterThanOrEqual(worktreeMinVersion)
}
