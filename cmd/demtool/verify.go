package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	dem "github.com/wgmilleriii/go-dem"
)

const verifySamplePoints = 5

var verifyInput string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Summarize a keyed sample cache and the DEM files it came from",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := cfg.Extract.Output
		if cmd.Flags().Changed("input") {
			input = verifyInput
		}

		out := cmd.OutOrStdout()
		collection, err := readKeyedFile(input)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Cache file: %s\n", input)
		fmt.Fprintf(out, "Total points: %d\n", collection.Len())
		if collection.Len() > 0 {
			fmt.Fprintln(out, "Sample points:")
			for _, sample := range collection.Samples()[:min(verifySamplePoints, collection.Len())] {
				fmt.Fprintf(out, "  %s: %v\n", dem.SampleKey(sample.Lat, sample.Lon), sample.Elevation)
			}
		}

		names, err := dem.ListRasters(os.DirFS(cfg.DEMDir))
		if err != nil {
			return eris.Wrapf(err, "verify: list %s", cfg.DEMDir)
		}
		fmt.Fprintf(out, "DEM files in %s: %d\n", cfg.DEMDir, len(names))
		for _, name := range names {
			info, err := os.Stat(filepath.Join(cfg.DEMDir, name))
			if err != nil {
				return eris.Wrapf(err, "verify: stat %s", name)
			}
			fmt.Fprintf(out, "  %s: %s, modified %s\n", name, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyInput, "input", "i", "", "keyed cache to verify (default extract.output)")
	rootCmd.AddCommand(verifyCmd)
}
