package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gasgit/gasgit/cmd/util"
	"github.com/gasgit/gasgit/pkg/errors"
	synclib "github.com/gasgit/gasgit/pkg/sync"
)

// New creates a new `sync` command.
func New() *cobra.Command {
	var direction string
	var force bool
	var project string
	var subtree string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the remote project with its local working copies.",
		Long: "Pull the remote project into the local git working copies, merge\n" +
			"remote changes with local edits, and push the merged result back.\n" +
			"Each git-linked subtree syncs independently.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(project, subtree, direction, force); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVar(&direction, "direction", string(synclib.DirectionSync),
		"One of sync, pull, or push")
	cmd.Flags().BoolVar(&force, "force", false,
		"Overwrite local content with the remote state, skipping the merge")
	cmd.Flags().StringVar(&subtree, "subtree", "",
		"Sync only the named subtree")
	cmd.Flags().StringVar(&project, "project", "",
		"Remote project ID (defaults to the configured project)")
	return cmd
}

func run(project, subtree, direction string, force bool) error {
	dir, err := synclib.ParseDirection(direction)
	if err != nil {
		return err
	}

	syncer, cfg, err := util.GetSyncer()
	if err != nil {
		return err
	}
	projectID, err := util.GetProject(project, cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	opts := synclib.Options{Direction: dir, ForceOverwrite: force}

	var results []synclib.Result
	if subtree != "" {
		res, err := syncer.SyncOne(ctx, projectID, subtree, opts)
		if err != nil {
			return err
		}
		results = []synclib.Result{res}
	} else {
		results, err = syncer.SyncAll(ctx, projectID, opts)
		if err != nil {
			return err
		}
	}
	return printResults(results)
}

func printResults(results []synclib.Result) error {
	var failures []string
	for _, res := range results {
		name := res.Subtree
		if name == "" {
			name = "<root>"
		}

		if res.Err != nil {
			failures = append(failures,
				fmt.Sprintf("%s: %s", name, errors.GetPrintableMessage(res.Err)))
			continue
		}
		fmt.Printf("%s: %d pulled, %d unchanged, %d pushed\n",
			name, len(res.Written), len(res.Unchanged), len(res.Pushed))
	}

	if len(failures) == 0 {
		return nil
	}
	return errors.NewFriendlyError("%d subtree(s) failed to sync:\n%s",
		len(failures), strings.Join(failures, "\n"))
}
