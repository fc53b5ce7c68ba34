package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskdeck-io/taskdeck/internal/bridge"
	"github.com/taskdeck-io/taskdeck/internal/bus"
	"github.com/taskdeck-io/taskdeck/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change settings",
	Long: `Show or change TaskDeck settings.

Changes are written to ~/.taskdeck/settings.yaml; a running daemon picks
them up without a restart.`,
	RunE: runSettingsShow,
}

var settingsTokenCmd = &cobra.Command{
	Use:   "token <api-token>",
	Short: "Set the task tracker API token",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsToken,
}

var settingsProjectCmd = &cobra.Command{
	Use:   "project [project-id]",
	Short: "Set or clear the default project filter",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSettingsProject,
}

var settingsTimerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Set work/break durations",
	RunE:  runSettingsTimer,
}

var (
	timerWorkMinutes  int
	timerBreakMinutes int
)

func init() {
	settingsTimerCmd.Flags().IntVar(&timerWorkMinutes, "work", 0, "work phase minutes (1-60)")
	settingsTimerCmd.Flags().IntVar(&timerBreakMinutes, "break", 0, "break phase minutes (1-60)")

	settingsCmd.AddCommand(settingsProjectCmd)
	settingsCmd.AddCommand(settingsTimerCmd)
	settingsCmd.AddCommand(settingsTokenCmd)
}

// localStore opens the settings file directly. Used for values the daemon
// does not own live state for; it reloads off fsnotify.
func localStore() (*config.Store, error) {
	path, err := config.GlobalSettingsFile()
	if err != nil {
		return nil, err
	}
	return config.NewStore(path, bus.New())
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	store, err := localStore()
	if err != nil {
		return err
	}

	source := store.TaskSource()
	timer := store.Timer()
	window := store.Window()

	token := "(not set)"
	if source.APIToken != "" {
		token = "********"
	}
	project := source.ProjectID
	if project == "" {
		project = "(all)"
	}

	fmt.Println(render(styleBrand, "TaskDeck settings"))
	fmt.Printf("  %s %s\n", render(styleLabel, "Tracker:   "), render(styleValue, source.BaseURL))
	fmt.Printf("  %s %s\n", render(styleLabel, "Token:     "), render(styleValue, token))
	fmt.Printf("  %s %s\n", render(styleLabel, "Project:   "), render(styleValue, project))
	fmt.Printf("  %s %s\n", render(styleLabel, "Timer:     "),
		render(styleValue, fmt.Sprintf("%dm work / %dm break", timer.WorkMinutes, timer.BreakMinutes)))
	fmt.Printf("  %s %s\n", render(styleLabel, "Theme:     "), render(styleValue, store.ActiveThemeName()))
	fmt.Printf("  %s %s\n", render(styleLabel, "Window:    "),
		render(styleValue, fmt.Sprintf("%dx%d at (%d,%d)", window.Width, window.Height, window.X, window.Y)))
	return nil
}

func runSettingsToken(cmd *cobra.Command, args []string) error {
	store, err := localStore()
	if err != nil {
		return err
	}

	source := store.TaskSource()
	source.APIToken = args[0]
	if err := store.SaveTaskSource(source); err != nil {
		return err
	}
	fmt.Println(render(styleSuccess, "Token saved."))
	return nil
}

func runSettingsProject(cmd *cobra.Command, args []string) error {
	store, err := localStore()
	if err != nil {
		return err
	}

	source := store.TaskSource()
	if len(args) == 0 {
		source.ProjectID = ""
	} else {
		source.ProjectID = args[0]
	}
	if err := store.SaveTaskSource(source); err != nil {
		return err
	}

	if source.ProjectID == "" {
		fmt.Println(render(styleSuccess, "Project filter cleared."))
	} else {
		fmt.Println(render(styleSuccess, "Project filter: ") + source.ProjectID)
	}
	return nil
}

// runSettingsTimer goes through the daemon so the live timer validates and
// applies immediately; the daemon persists on success.
func runSettingsTimer(cmd *cobra.Command, args []string) error {
	if timerWorkMinutes == 0 && timerBreakMinutes == 0 {
		return fmt.Errorf("nothing to set: pass --work and/or --break")
	}

	if timerWorkMinutes > 0 {
		err := sendCommand(&bridge.CommandRequest{
			Name:    bridge.CmdSetWorkTime,
			Minutes: timerWorkMinutes,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s %d minutes\n", render(styleSuccess, "Work:"), timerWorkMinutes)
	}
	if timerBreakMinutes > 0 {
		err := sendCommand(&bridge.CommandRequest{
			Name:    bridge.CmdSetBreakTime,
			Minutes: timerBreakMinutes,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s %d minutes\n", render(styleSuccess, "Break:"), timerBreakMinutes)
	}
	return nil
}
