package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskdeck-io/taskdeck/internal/bridge"
)

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Work with presentation themes",
}

var themeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered themes",
	RunE:  runThemeList,
}

var themeUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Activate a theme",
	Args:  cobra.ExactArgs(1),
	RunE:  runThemeUse,
}

func init() {
	themeCmd.AddCommand(themeListCmd)
	themeCmd.AddCommand(themeUseCmd)
}

func runThemeList(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	list, err := client.ListThemes(ctx)
	if err != nil {
		return err
	}

	for _, info := range list.Themes {
		marker := "  "
		name := render(styleValue, info.Name)
		if info.Name == list.Active {
			marker = render(styleSuccess, "● ")
		}
		line := marker + name
		if info.Description != "" {
			line += "  " + render(styleHint, info.Description)
		}
		fmt.Println(line)
	}
	return nil
}

func runThemeUse(cmd *cobra.Command, args []string) error {
	name := args[0]
	err := sendCommand(&bridge.CommandRequest{
		Name:  bridge.CmdThemeSwitch,
		Theme: name,
	})
	if err != nil {
		return err
	}
	fmt.Println(render(styleSuccess, "Theme: ") + name)
	return nil
}
