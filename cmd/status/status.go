package status

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gasgit/gasgit/cmd/util"
	"github.com/gasgit/gasgit/pkg/breadcrumb"
	"github.com/gasgit/gasgit/pkg/config"
	"github.com/gasgit/gasgit/pkg/errors"
	"github.com/gasgit/gasgit/pkg/remote"
)

// New creates a new `status` command.
func New() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List the project's git-linked subtrees and their sync state.",
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
	cfg, err := config.ParseUser()
	if err != nil {
		return errors.WithContext(err, "parse user config")
	}
	client, err := util.GetClient(cfg)
	if err != nil {
		return err
	}
	projectID, err := util.GetProject(project, cfg)
	if err != nil {
		return err
	}

	files, err := client.List(context.Background(), projectID)
	if err != nil {
		return errors.WithContext(err, "list remote files")
	}

	for _, subtree := range breadcrumb.ListSubtrees(files) {
		name := subtree
		if name == "" {
			name = "<root>"
		}
		fmt.Printf("%s: %s\n", name, describe(files, subtree))
	}
	return nil
}

func describe(files []remote.File, subtree string) string {
	bc, err := breadcrumb.Find(files, subtree)
	if err != nil {
		return "not linked"
	}
	if bc.LastSync == nil {
		return "linked, never synced"
	}
	return fmt.Sprintf("last synced %s (%s, %d file(s) changed)",
		bc.LastSync.Timestamp.Format(time.RFC3339),
		bc.LastSync.Direction, bc.LastSync.FilesChanged)
}
