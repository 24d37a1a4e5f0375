package arg

import (
	"fmt"

	"github.com/spf13/cobra"
)

// listCommand builds the add/remove/list tree for one domain list.
func listCommand(name, method, short string) *cobra.Command {
	parent := &cobra.Command{
		Use:   name,
		Short: short,
	}

	parent.AddCommand(&cobra.Command{
		Use:   "add <pattern>",
		Short: "Add a domain pattern such as reddit.com or *.example.com",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var added bool
			call("Add"+method, []interface{}{&added}, args[0])
			if !added {
				fmt.Printf("%s is already on the %s\n", args[0], name)
				return
			}
			fmt.Printf("Added %s to the %s\n", args[0], name)
		},
	})

	parent.AddCommand(&cobra.Command{
		Use:   "remove <pattern>",
		Short: "Remove a domain pattern",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			call("Remove"+method, nil, args[0])
			fmt.Printf("Removed %s from the %s\n", args[0], name)
		},
	})

	parent.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List domain patterns",
		Run: func(cmd *cobra.Command, args []string) {
			var patterns []string
			call("List"+method, []interface{}{&patterns})
			if len(patterns) == 0 {
				fmt.Printf("The %s is empty\n", name)
				return
			}
			fmt.Println(titleStyle.Render(name))
			for _, p := range patterns {
				fmt.Println("  " + p)
			}
		},
	})

	return parent
}

func init() {
	rootCmd.AddCommand(listCommand("blacklist", "Blacklist", "Manage domains that always count as distractions"))
	rootCmd.AddCommand(listCommand("whitelist", "Whitelist", "Manage domains that never trigger nudges"))
}
