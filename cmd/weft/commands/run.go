package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftwork/weft/internal/event"
	"github.com/weftwork/weft/internal/session"
	"github.com/weftwork/weft/pkg/types"
)

var (
	runAgent  string
	runModel  string
	runThread string
	runFormat string
	runDir    string
	runData   string
)

// maxDisplayOutput caps tool output shown in the terminal. The stored
// transcript keeps the full output.
const maxDisplayOutput = 4000

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Run a single turn without the server",
	Long: `Run one conversational turn against the local store, streaming the
agent's response to stdout.

Examples:
  weft run "Hello there"
  weft run --agent echo --model echo-1-verbose "Hello"
  weft run --thread scratch "Try this in a separate thread"`,
	RunE: runHeadless,
}

func init() {
	runCmd.Flags().StringVar(&runAgent, "agent", "", "Agent to use for this thread")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use for this session")
	runCmd.Flags().StringVarP(&runThread, "thread", "t", "", "Thread ID (bootstraps the default thread when empty)")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "Output format (text|json)")
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory for config lookup")
	runCmd.Flags().StringVar(&runData, "data-dir", "", "Storage directory")
}

func runHeadless(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message required. Usage: weft run \"your message\"")
	}

	workDir, err := workingDir(runDir)
	if err != nil {
		return err
	}

	app, err := buildApp(workDir, runData)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	boot, err := app.sessions.Bootstrap(ctx, runThread)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	if runAgent != "" || runModel != "" {
		update := session.ThreadStateUpdate{}
		if runAgent != "" {
			update.Agent = &runAgent
		}
		if runModel != "" {
			update.Model = &runModel
		}
		if _, err := app.sessions.UpdateThreadState(ctx, boot.SessionID, boot.ThreadID, update); err != nil {
			return err
		}
	}

	streaming := runFormat == "text"
	var unsub func()
	if streaming {
		unsub = app.bus.Subscribe(event.RunDelta, func(e event.Event) {
			d, ok := e.Data.(event.RunDeltaData)
			if !ok || d.SessionID != boot.SessionID || d.ThreadID != boot.ThreadID {
				return
			}
			if ev, ok := d.Event.(types.TextDeltaEvent); ok {
				fmt.Print(ev.Delta)
			}
		})
		defer unsub()
	}

	result, err := app.sessions.Run(ctx, session.RunRequest{
		SessionID: boot.SessionID,
		ThreadID:  boot.ThreadID,
		Prompt:    message,
	})
	if err != nil {
		return err
	}

	if runFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(result.Produced)
	}

	fmt.Println()
	printNonTextParts(result.Produced)
	return nil
}

// printNonTextParts renders tool calls and errors after the streamed text.
func printNonTextParts(produced []types.Message) {
	for _, msg := range produced {
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case *types.ToolPart:
				fmt.Printf("\n[%s] %s\n", p.ToolName, p.State)
				if out := formatToolOutput(p.Output); out != "" {
					fmt.Println(truncateOutput(out))
				}
			case *types.TextPart:
				if msg.Role == types.RoleSystem {
					fmt.Fprintf(os.Stderr, "\nerror: %s\n", p.Text)
				}
			}
		}
	}
}

// formatToolOutput renders a tool output value for the terminal.
func formatToolOutput(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// truncateOutput caps a tool output string for display. Persisted data is
// never truncated.
func truncateOutput(s string) string {
	if len(s) <= maxDisplayOutput {
		return s
	}
	return s[:maxDisplayOutput] + "\n... (output truncated)"
}
