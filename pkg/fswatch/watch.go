// Package fswatch reports filesystem changes in local working copies.
package fswatch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/gasgit/gasgit/pkg/errors"
)

var fs = afero.NewOsFs()

// ignoredDirs are directory names that are never watched. Repository
// internals churn on every commit, and the breadcrumb mirror is rewritten by
// the sync itself; watching either would make the watcher trigger its own
// syncs forever.
var ignoredDirs = map[string]bool{
	".git":     true,
	".git-gas": true,
}

// Watch watches the given working copies for changes. It sends an event on
// the returned channel whenever a file within any of them changes. Bursts of
// events are coalesced, so one channel receive can cover many file changes.
func Watch(dirs []string) (chan struct{}, error) {
	var pathsToWatch []string
	for _, dir := range dirs {
		paths, err := getPathsToWatch(dir)
		if err != nil {
			return nil, errors.WithContext(err, "get paths")
		}
		pathsToWatch = append(pathsToWatch, paths...)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}
	return combineUpdates(watcher.Events), nil
}

func combineUpdates(updates <-chan fsnotify.Event) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for range updates {
			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// getPathsToWatch returns the working copy's directories and files. fsnotify
// doesn't watch directories recursively, so we walk the tree and add every
// subdirectory and file individually.
func getPathsToWatch(dir string) (paths []string, err error) {
	if _, err := fs.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: dir}
		}
		return nil, errors.WithContext(err, "stat")
	}

	err = afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if fi.IsDir() && ignoredDirs[fi.Name()] {
			return filepath.SkipDir
		}

		paths = append(paths, path)
		return nil
	})
	return paths, err
}
