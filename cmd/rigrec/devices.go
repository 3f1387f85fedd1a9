// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/ManuGH/rigrec/internal/controller"
	"github.com/ManuGH/rigrec/internal/log"
	"github.com/spf13/cobra"
)

func newDevicesCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached devices without recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			configureLogging(cmd, cfg)

			drivers, err := controller.DriversFromConfig(cfg)
			if err != nil {
				return err
			}
			descs, err := controller.Enumerate(cmd.Context(), drivers)
			if err != nil {
				if len(descs) == 0 {
					return err
				}
				logger := log.WithComponent("devices")
				logger.Warn().Err(err).Msg("enumeration incomplete")
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(descs)
			}
			if len(descs) == 0 {
				_, _ = fmt.Fprintln(out, "no devices found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "FAMILY\tID\tNAME\tPATH")
			for _, d := range descs {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Family, d.ID, d.Name, d.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	return cmd
}
