package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	statusCmd "github.com/gasgit/gasgit/cmd/status"
	syncCmd "github.com/gasgit/gasgit/cmd/sync"
	"github.com/gasgit/gasgit/cmd/util"
	"github.com/gasgit/gasgit/cmd/version"
	watchCmd "github.com/gasgit/gasgit/cmd/watch"
	writeCmd "github.com/gasgit/gasgit/cmd/write"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "GASGIT_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:          "gasgit",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		statusCmd.New(),
		syncCmd.New(),
		version.New(),
		watchCmd.New(),
		writeCmd.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
