package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	dem "github.com/wgmilleriii/go-dem"
)

var profilePoints int

var profileCmd = &cobra.Command{
	Use:   "profile start-lat start-lon end-lat end-lon",
	Short: "Print the elevation profile along a straight line as JSON",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parsePoint(args[0], args[1])
		if err != nil {
			return err
		}
		end, err := parsePoint(args[2], args[3])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		catalog, err := newCatalog(ctx, cfg.Server.Interpolate)
		if err != nil {
			return err
		}
		defer catalog.Close()

		profile, err := dem.NewProfile(ctx, catalog, start, end, profilePoints)
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return eris.Wrap(encoder.Encode(profile), "profile: encode")
	},
}

func init() {
	profileCmd.Flags().IntVarP(&profilePoints, "points", "n", 100, "number of points along the profile")
	rootCmd.AddCommand(profileCmd)
}
