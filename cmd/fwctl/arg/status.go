package arg

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/FocusWarden/internal/engine"
)

var rawStatus bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current focus session and drift state",
	Run: func(cmd *cobra.Command, args []string) {
		var result string
		call("GetStatus", []interface{}{&result})

		if rawStatus {
			fmt.Println(result)
			return
		}

		var status engine.Status
		if err := json.Unmarshal([]byte(result), &status); err != nil {
			log.Fatal("Failed to parse response:", err)
		}
		fmt.Println(renderStatus(status))
	},
}

func init() {
	statusCmd.Flags().BoolVar(&rawStatus, "json", false, "print the raw JSON status")
	rootCmd.AddCommand(statusCmd)
}
