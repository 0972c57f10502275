package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/weftwork/weft/internal/selection"
)

var (
	modelsDir  string
	modelsData string
)

var modelsCmd = &cobra.Command{
	Use:   "models [agent]",
	Short: "List available models",
	Long: `List the models offered by an agent.

Examples:
  weft models          # Models of the default agent
  weft models echo     # Models of a specific agent`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().StringVar(&modelsDir, "directory", "", "Working directory for config lookup")
	modelsCmd.Flags().StringVar(&modelsData, "data-dir", "", "Storage directory")
}

func runModels(cmd *cobra.Command, args []string) error {
	workDir, err := workingDir(modelsDir)
	if err != nil {
		return err
	}

	app, err := buildApp(workDir, modelsData)
	if err != nil {
		return err
	}
	defer app.Close()

	sel := selection.DefaultAgentSelection(app.registry)
	if len(args) > 0 {
		sel, err = selection.ResolveRequestedAgent(app.registry, args[0], true)
		if err != nil {
			return err
		}
	}

	defaultModel := selection.DefaultModel(sel.Plugin)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tMODEL\t")
	for _, id := range selection.ListModels(sel.Plugin) {
		model := id
		if id == defaultModel {
			model += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t\n", sel.AgentID, model)
	}
	return w.Flush()
}
