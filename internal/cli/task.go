package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskdeck-io/taskdeck/internal/bridge"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Work with the task list",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the cycling task list",
	RunE:  runTaskList,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <content>...",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Cycle to the next task",
	RunE:  runTaskNext,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done",
	Short: "Complete the current task",
	RunE:  runTaskDone,
}

var taskAddProject string

func init() {
	taskAddCmd.Flags().StringVarP(&taskAddProject, "project", "p", "", "project to add the task to")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskNextCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	snapshot, err := client.GetSnapshot(ctx)
	if err != nil {
		return err
	}

	if len(snapshot.Tasks) == 0 {
		fmt.Println(render(styleHint, "No tasks."))
		return nil
	}

	for _, task := range snapshot.Tasks {
		marker := "  "
		line := task.Content
		if snapshot.CurrentTask != nil && task.ID == snapshot.CurrentTask.ID {
			marker = render(styleSuccess, "▸ ")
			line = render(styleValue, line)
		} else {
			line = render(styleHint, line)
		}
		fmt.Println(marker + line)
	}
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	content := strings.Join(args, " ")
	err := sendCommand(&bridge.CommandRequest{
		Name:      bridge.CmdAddTask,
		Content:   content,
		ProjectID: taskAddProject,
	})
	if err != nil {
		return err
	}
	fmt.Println(render(styleSuccess, "Added: ") + content)
	return nil
}

func runTaskNext(cmd *cobra.Command, args []string) error {
	if err := sendCommand(&bridge.CommandRequest{Name: bridge.CmdNextTask}); err != nil {
		return err
	}
	return showCurrentTask()
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	if err := sendCommand(&bridge.CommandRequest{Name: bridge.CmdCompleteTask}); err != nil {
		return err
	}
	fmt.Println(render(styleSuccess, "Completed."))
	return showCurrentTask()
}

func showCurrentTask() error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	snapshot, err := client.GetSnapshot(ctx)
	if err != nil {
		return err
	}
	if snapshot.CurrentTask == nil {
		fmt.Println(render(styleHint, "No current task."))
		return nil
	}
	fmt.Println(render(styleLabel, "Current: ") + render(styleValue, snapshot.CurrentTask.Content))
	return nil
}
