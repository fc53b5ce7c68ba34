// Package cli implements the taskdeck CLI commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/taskdeck-io/taskdeck/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "taskdeck",
	Short: "Desktop to-do overlay with a work/break timer",
	Long: `TaskDeck shows your current task and a work/break timer in a small
overlay. Themes decide how that state is presented; the daemon owns the
state and every connected surface mirrors it.

Run without arguments to open the terminal surface.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := EnsureDaemon(); err != nil {
			return err
		}
		return tui.Run()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add subcommands (alphabetical)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}
