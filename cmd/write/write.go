package write

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gasgit/gasgit/cmd/util"
)

// New creates a new `write` command.
func New() *cobra.Command {
	var file string
	var project string

	cmd := &cobra.Command{
		Use:   "write <remote-name>",
		Short: "Push a single file to the remote project.",
		Long: "Validate, commit, and push one file to the remote project.\n" +
			"The local working copy and the remote store are updated together:\n" +
			"if the remote write fails, the local commit is rolled back.",
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(project, args[0], file); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVar(&file, "file", "",
		"Local file holding the content to push")
	cobra.MarkFlagRequired(cmd.Flags(), "file")
	cmd.Flags().StringVar(&project, "project", "",
		"Remote project ID (defaults to the configured project)")
	return cmd
}

func run(project, remoteName, file string) error {
	syncer, cfg, err := util.GetSyncer()
	if err != nil {
		return err
	}
	projectID, err := util.GetProject(project, cfg)
	if err != nil {
		return err
	}

	if err := syncer.WriteFile(context.Background(), projectID, remoteName, file); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", remoteName)
	return nil
}
