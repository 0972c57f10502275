package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	agentsDir  string
	agentsData string
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List registered agents",
	RunE:  runAgents,
}

func init() {
	agentsCmd.Flags().StringVar(&agentsDir, "directory", "", "Working directory for config lookup")
	agentsCmd.Flags().StringVar(&agentsData, "data-dir", "", "Storage directory")
}

func runAgents(cmd *cobra.Command, args []string) error {
	workDir, err := workingDir(agentsDir)
	if err != nil {
		return err
	}

	app, err := buildApp(workDir, agentsData)
	if err != nil {
		return err
	}
	defer app.Close()

	defaultID := app.registry.DefaultID()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEFAULT MODEL\t")
	for _, p := range app.registry.List() {
		id := p.ID
		if id == defaultID {
			id += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", id, p.DisplayName(), p.DefaultModel)
	}
	return w.Flush()
}
