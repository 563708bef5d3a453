package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nadzzz/civicbot/internal/hazard"
	"github.com/nadzzz/civicbot/internal/monitor"
	"github.com/nadzzz/civicbot/internal/notify"
)

func newHazardsCmd(configFile *string) *cobra.Command {
	var push bool

	cmd := &cobra.Command{
		Use:   "hazards",
		Short: "Print the current hazard update for the configured region",
		Long:  "Fetches NWS alerts and FEMA declarations once and prints the update. With --notify, runs one monitor cycle instead and pushes the update to the configured notifiers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			source := hazard.NewSource(cfg.Hazard)
			out := cmd.OutOrStdout()

			if !push {
				snap, err := source.Fetch(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(out, hazard.FormatUpdate(snap, source.Region()))
				return nil
			}

			notifiers, err := notify.FromConfig(cfg.Notify)
			if err != nil {
				return err
			}
			defer notifiers.Close()

			mon, err := monitor.New(source, notifiers, cfg.Monitor, source.Region())
			if err != nil {
				return err
			}
			outcome := mon.RunOnce(cmd.Context())
			fmt.Fprintln(out, "monitor cycle:", outcome)
			switch outcome {
			case monitor.OutcomeFetchError, monitor.OutcomeNotifyErr:
				return fmt.Errorf("hazard cycle failed: %s", outcome)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&push, "notify", false, "push the update to the configured notifiers")
	return cmd
}
