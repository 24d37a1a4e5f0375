package arg

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

var keywords []string

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Start, end or complete a focus session",
}

var focusStartCmd = &cobra.Command{
	Use:   "start <description>",
	Short: "Start a focus session on a task",
	Long: `Start a focus session. Without a browser origin tab the description
and keywords alone decide what counts as on task.
Examples:
  fwctl focus start "Learn Go concurrency" -k goroutines -k channels`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		description := strings.Join(args, " ")

		var result string
		call("StartFocus", []interface{}{&result}, description, keywords)

		var focus session.FocusSession
		if err := json.Unmarshal([]byte(result), &focus); err != nil {
			log.Fatal("Failed to parse response:", err)
		}
		fmt.Printf("Focusing on: %s\n", focus.TaskName())
		if len(focus.Keywords) > 0 {
			fmt.Printf("  Keywords: %s\n", strings.Join(focus.Keywords, ", "))
		}
	},
}

var focusEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Abandon the current focus session",
	Run: func(cmd *cobra.Command, args []string) {
		var ended bool
		call("EndFocus", []interface{}{&ended})
		if !ended {
			fmt.Println("No focus session is active")
			return
		}
		fmt.Println("Focus session ended")
	},
}

var focusCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Mark the current task done and record it",
	Run: func(cmd *cobra.Command, args []string) {
		var result string
		call("CompleteFocus", []interface{}{&result})

		var task session.CompletedTask
		if err := json.Unmarshal([]byte(result), &task); err != nil {
			log.Fatal("Failed to parse response:", err)
		}
		fmt.Println(okStyle.Render("Completed: ") + task.TaskName)
	},
}

var focusReturnCmd = &cobra.Command{
	Use:   "return",
	Short: "Switch the browser back to the focus tab",
	Run: func(cmd *cobra.Command, args []string) {
		call("ReturnToFocus", nil)
		fmt.Println("Returned to focus tab")
	},
}

func init() {
	focusStartCmd.Flags().StringSliceVarP(&keywords, "keyword", "k", nil, "keyword that marks a page as on task (repeatable)")

	focusCmd.AddCommand(focusStartCmd)
	focusCmd.AddCommand(focusEndCmd)
	focusCmd.AddCommand(focusCompleteCmd)
	focusCmd.AddCommand(focusReturnCmd)
	rootCmd.AddCommand(focusCmd)
}
