package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var interfacesJSON bool

// interfacesCmd represents the interfaces command
var interfacesCmd = &cobra.Command{
	Use:     "interfaces",
	Aliases: []string{"if"},
	Short:   "List local IPv4 network adapters",
	Long: `List the IPv4 addresses of active, non-loopback adapters in order of
preference. The subnet of the first adapter is the default scan range.`,
	Args: cobra.NoArgs,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
	interfacesCmd.Flags().BoolVar(&interfacesJSON, "json", false, "print as JSON")
}

func runInterfaces(cmd *cobra.Command, _ []string) error {
	adapters, err := enumerateAdapters()
	if err != nil {
		return fmt.Errorf("failed to list network adapters: %w", err)
	}

	out := cmd.OutOrStdout()
	if interfacesJSON {
		return writeJSON(out, adapters)
	}
	if len(adapters) == 0 {
		fmt.Fprintln(out, "No active IPv4 adapters found")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Name", "Type", "Address", "Subnet")
	for _, a := range adapters {
		_ = table.Append([]string{a.Name, a.Type.String(), a.IP.String(), a.Subnet.String()})
	}
	_ = table.Render()
	fmt.Fprintf(out, "Default range: %s\n", adapters[0].Subnet)
	return nil
}
