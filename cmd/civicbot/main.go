// Civicbot is a multilingual civic-assistance chatbot. It serves chat
// sessions over HTTP/SSE and gRPC, answers hazard questions from live NWS
// and OpenFEMA data, and pushes hazard digests to notifier channels on a
// schedule.
//
// Usage:
//
//	civicbot serve [--config /path/to/civicbot.yaml]
//	civicbot ask [--variant ID] [--language CODE] [message...]
//	civicbot hazards [--notify]
//	civicbot variants
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/nadzzz/civicbot/docs"
)

// version is set at build time via ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "civicbot",
		Short:         "Civic-assistance chatbot with live hazard alerts",
		Long:          "Civicbot answers residents in their own language through persona-driven chat sessions and monitors NWS and FEMA feeds for hazards.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("civicbot {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/civicbot.yaml)")

	cmd.AddCommand(newServeCmd(&configFile))
	cmd.AddCommand(newAskCmd(&configFile))
	cmd.AddCommand(newHazardsCmd(&configFile))
	cmd.AddCommand(newVariantsCmd())
	return cmd
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
