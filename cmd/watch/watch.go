package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gasgit/gasgit/cmd/util"
	"github.com/gasgit/gasgit/pkg/cache"
	"github.com/gasgit/gasgit/pkg/fswatch"
	synclib "github.com/gasgit/gasgit/pkg/sync"
)

// settleDelay is how long we wait after a filesystem event before syncing, so
// editors finish writing bursts of files first.
const settleDelay = 500 * time.Millisecond

// hashCacheSize bounds the per-file digest cache used to skip no-op syncs.
const hashCacheSize = 4096

// New creates a new `watch` command.
func New() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously sync local edits to the remote project.",
		Long: "Run an initial sync, then watch the local working copies and\n" +
			"re-sync whenever a file changes. Runs until interrupted.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(project); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVar(&project, "project", "",
		"Remote project ID (defaults to the configured project)")
	return cmd
}

func run(project string) error {
	syncer, cfg, err := util.GetSyncer()
	if err != nil {
		return err
	}
	projectID, err := util.GetProject(project, cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	opts := synclib.Options{Direction: synclib.DirectionSync}

	results, err := syncer.SyncAll(ctx, projectID, opts)
	if err != nil {
		return err
	}

	var dirs []string
	for _, res := range results {
		if res.Err != nil {
			log.WithError(res.Err).Warn("Initial sync failed for a subtree")
			continue
		}
		dirs = append(dirs,
			filepath.Join(cfg.ProjectDir(projectID), filepath.FromSlash(res.Subtree)))
	}
	if len(dirs) == 0 {
		return fmt.Errorf("no subtree synced successfully; nothing to watch")
	}

	updates, err := fswatch.Watch(dirs)
	if err != nil {
		return err
	}

	// Prime the digest cache with the post-sync state so the first event
	// isn't always treated as a change.
	hashes := cache.New(hashCacheSize)
	anyChanged(hashes, dirs)

	log.Info("Watching for changes. Press Ctrl-C to stop.")
	for range updates {
		time.Sleep(settleDelay)
		if !anyChanged(hashes, dirs) {
			continue
		}

		results, err := syncer.SyncAll(ctx, projectID, opts)
		if err != nil {
			log.WithError(err).Warn("Sync failed")
			continue
		}
		for _, res := range results {
			if res.Err != nil {
				log.WithError(res.Err).Warn("Subtree sync failed")
			}
		}
		// The sync itself may have touched files; absorb those changes so
		// they don't trigger another round.
		anyChanged(hashes, dirs)
	}
	return nil
}

// anyChanged walks the working copies and reports whether any file's content
// digest moved since the last call. Digests are memoized keyed by path and
// mtime, so unchanged files aren't re-hashed.
func anyChanged(hashes *cache.LRU, dirs []string) bool {
	changed := false
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if d.Name() == ".git" || d.Name() == ".git-gas" {
					return filepath.SkipDir
				}
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			key := fmt.Sprintf("%s@%d", p, info.ModTime().UnixNano())
			digest, ok := hashes.Get(key)
			if !ok {
				content, err := os.ReadFile(p)
				if err != nil {
					return nil
				}
				sum := sha256.Sum256(content)
				digest = hex.EncodeToString(sum[:])
				hashes.Put(key, digest)
			}

			prevKey := "last:" + p
			if prev, ok := hashes.Get(prevKey); !ok || prev != digest {
				changed = true
				hashes.Put(prevKey, digest)
			}
			return nil
		})
		if err != nil {
			log.WithError(err).Debug("Failed to walk working copy")
		}
	}
	return changed
}
