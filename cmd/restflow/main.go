package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/studiowebux/restflow/internal/cli"
	"github.com/studiowebux/restflow/internal/config"
	"github.com/studiowebux/restflow/internal/logger"
)

var (
	version = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	// Failed requests and flows have already been printed
	if !errors.Is(err, cli.ErrRequestFailed) && !errors.Is(err, cli.ErrFlowFailed) && !errors.Is(err, cli.ErrFlowCancelled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

var rootCmd = &cobra.Command{
	Use:   "restflow",
	Short: "restflow - multi-protocol API client",
	Long: `restflow executes REST, GraphQL and WebSocket requests stored in a workspace,
and runs flows that chain requests together.

A workspace is a directory of YAML, JSON or JSONC files declaring requests,
collections, environments and flows. Placeholders like {{ API_URL }} are
resolved from the collection, then the environment, then dynamic variables.

Examples:
  restflow list                             # Show requests and flows
  restflow run get-user --env dev           # Execute a request
  restflow run get-user -e userId=42        # Provide a variable
  restflow run list-users -q 'items[].name' # JMESPath query on the body
  restflow flow signup --env staging        # Run a flow
  restflow env use dev                      # Select the current environment
  restflow history --request get-user       # Show recorded executions`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		cleanup, err := logger.Setup(logger.Config{Dir: config.LogDir, Debug: flagDebug})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		} else {
			cobra.OnFinalize(func() { _ = cleanup() })
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Execute a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error {
			_, err := app.RunRequest(cmd.Context(), cli.RunOptions{
				RequestID:    args[0],
				Environment:  flagEnv,
				EnvFile:      flagEnvFile,
				ExtraVars:    flagExtraVars,
				OutputFormat: flagOutput,
				Filter:       flagFilter,
				Query:        flagQuery,
				EventTypes:   flagEvents,
				ShowFull:     flagFull,
				SavePath:     flagSave,
				Copy:         flagCopy,
				NoPrompt:     flagNoPrompt,
			})
			return err
		})
	},
}

var flowCmd = &cobra.Command{
	Use:   "flow <flow>",
	Short: "Run a flow",
	Long: `Run the steps of a flow in order. A failing step stops the flow unless
the step sets continueOnError. Ctrl+C cancels the run before the next step.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error {
			_, err := app.RunFlow(cmd.Context(), cli.FlowOptions{
				FlowID:       args[0],
				Environment:  flagEnv,
				EnvFile:      flagEnvFile,
				ExtraVars:    flagExtraVars,
				OutputFormat: flagOutput,
			})
			return err
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests and flows in the workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error {
			app.ListRequests()
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded executions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error {
			_, err := app.ListHistory(cli.HistoryOptions{
				RequestID:    flagHistoryRequest,
				Limit:        flagHistoryLimit,
				OutputFormat: flagOutput,
			})
			return err
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded executions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error { return app.ClearHistory() })
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-request call counts and durations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error {
			_, err := app.HistoryStats(flagStatsEnv, flagOutput)
			return err
		})
	},
}

var historyEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Record executions in history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error { return app.SetHistoryEnabled(true) })
	},
}

var historyDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop recording executions in history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error { return app.SetHistoryEnabled(false) })
	},
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "List or select environments",
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List environments, marking the current one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error {
			app.ListEnvironments()
			return nil
		})
	},
}

var envUseCmd = &cobra.Command{
	Use:   "use <environment>",
	Short: "Select the current environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error { return app.UseEnvironment(args[0]) })
	},
}

var envClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the current environment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) error { return app.UseEnvironment("") })
	},
}

// Shared flags
var (
	flagWorkspace string
	flagEnv       string
	flagEnvFile   string
	flagExtraVars []string
	flagOutput    string
	flagDebug     bool
)

// Flags for run
var (
	flagFilter   string
	flagQuery    string
	flagEvents   []string
	flagFull     bool
	flagSave     string
	flagCopy     bool
	flagNoPrompt bool
)

// Flags for history
var (
	flagHistoryRequest string
	flagHistoryLimit   int
	flagStatsEnv       string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", "", "Workspace directory (default from config, then current directory)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Output format (json/yaml/text/body)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Write debug logs")

	for _, cmd := range []*cobra.Command{runCmd, flowCmd} {
		cmd.Flags().StringVar(&flagEnv, "env", "", "Environment to use (default: current environment)")
		cmd.Flags().StringVar(&flagEnvFile, "env-file", "", "Load variables from a .env file")
		cmd.Flags().StringArrayVarP(&flagExtraVars, "extra-vars", "e", []string{}, "Set variable (key=value), can be repeated")
	}

	runCmd.Flags().StringVar(&flagFilter, "filter", "", "JMESPath filter applied to the body")
	runCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "JMESPath query applied after the filter")
	runCmd.Flags().StringSliceVar(&flagEvents, "events", nil, "Only show stream events of these types")
	runCmd.Flags().BoolVarP(&flagFull, "full", "f", false, "Show full output (request, headers, body)")
	runCmd.Flags().StringVarP(&flagSave, "save", "s", "", "Save response to file")
	runCmd.Flags().BoolVar(&flagCopy, "copy", false, "Copy the response body to the clipboard")
	runCmd.Flags().BoolVar(&flagNoPrompt, "no-prompt", false, "Never prompt for missing variables")

	historyCmd.Flags().StringVar(&flagHistoryRequest, "request", "", "Only show entries of this request")
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Maximum number of entries (0 for all)")

	historyStatsCmd.Flags().StringVar(&flagStatsEnv, "env", "", "Only count executions in this environment")

	historyCmd.AddCommand(historyStatsCmd, historyClearCmd, historyEnableCmd, historyDisableCmd)
	envCmd.AddCommand(envListCmd, envUseCmd, envClearCmd)
	rootCmd.AddCommand(runCmd, flowCmd, listCmd, historyCmd, envCmd)
}

// withApp opens the workspace and history for one command
func withApp(fn func(app *cli.App) error) error {
	settings, err := config.Load(config.ConfigDir)
	if err != nil {
		return err
	}

	app, err := cli.Open(cli.Config{
		Workspace:    flagWorkspace,
		Settings:     settings,
		SessionFile:  config.SessionFile,
		DatabasePath: config.DatabasePath,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(app)
}
