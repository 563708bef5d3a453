package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nadzzz/civicbot/internal/persona"
)

func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the chatbot variants",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := persona.Builtin()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			def := catalog.Default().ID
			for _, v := range catalog.All() {
				mark := " "
				if v.ID == def {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s\n", mark, v.ID)
			}
			return nil
		},
	}
}
