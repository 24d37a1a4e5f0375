package arg

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

var historyDays int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently completed tasks",
	Run: func(cmd *cobra.Command, args []string) {
		if historyDays <= 0 {
			log.Fatal("--days must be positive")
		}

		var result string
		call("CompletedTasks", []interface{}{&result}, int32(historyDays))

		var tasks []session.CompletedTask
		if err := json.Unmarshal([]byte(result), &tasks); err != nil {
			log.Fatal("Failed to parse response:", err)
		}
		fmt.Println(renderTasks(tasks, historyDays))
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyDays, "days", 7, "how many days back to look")
	rootCmd.AddCommand(historyCmd)
}
