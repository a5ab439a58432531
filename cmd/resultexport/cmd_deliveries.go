package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"resultexport/internal/delivery"
)

var deliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "List the deliveries found under the configured root",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := delivery.NewRegistry(cfg.DeliveriesDir).All()
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no deliveries under %s\n", cfg.DeliveriesDir)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tDIR")
		for _, d := range all {
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.Label, d.Dir)
		}
		return w.Flush()
	},
}
