package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dem "github.com/wgmilleriii/go-dem"
)

var reduceFlags struct {
	factor    int
	input     string
	output    string
	publicDir string
}

var reduceCmd = &cobra.Command{
	Use:   "reduce",
	Short: "Thin a keyed sample cache by keeping every n-th latitude and longitude",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		factor, input, output := cfg.Reduce.Factor, cfg.Reduce.Input, cfg.Reduce.Output
		if flags.Changed("factor") {
			factor = reduceFlags.factor
		}
		if flags.Changed("input") {
			input = reduceFlags.input
		}
		if flags.Changed("output") {
			output = reduceFlags.output
		}

		original, err := readKeyedFile(input)
		if err != nil {
			return err
		}
		reduced, err := dem.Reduce(original, factor)
		if err != nil {
			return err
		}

		if err := writeCollection(output, reduced, dem.FormatKeyed); err != nil {
			return err
		}
		if reduceFlags.publicDir != "" {
			if info, err := os.Stat(reduceFlags.publicDir); err == nil && info.IsDir() {
				publicOutput := filepath.Join(reduceFlags.publicDir, filepath.Base(output))
				if err := writeCollection(publicOutput, reduced, dem.FormatKeyed); err != nil {
					return err
				}
				zap.L().Info("copied reduced cache", zap.String("path", publicOutput))
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Original points: %d\n", original.Len())
		fmt.Fprintf(out, "Reduced points: %d\n", reduced.Len())
		if original.Len() > 0 {
			fmt.Fprintf(out, "Reduction ratio: %.2f%%\n", 100*float64(reduced.Len())/float64(original.Len()))
		}
		fmt.Fprintf(out, "Saved to %s\n", output)
		return nil
	},
}

func readKeyedFile(name string) (*dem.Collection, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", name)
	}
	defer file.Close()
	return dem.ReadKeyed(file)
}

func init() {
	flags := reduceCmd.Flags()
	flags.IntVar(&reduceFlags.factor, "factor", 0, "keep every factor-th distinct latitude and longitude (default from config)")
	flags.StringVarP(&reduceFlags.input, "input", "i", "", "keyed cache to read (default from config)")
	flags.StringVarP(&reduceFlags.output, "output", "o", "", "keyed cache to write (default from config)")
	flags.StringVar(&reduceFlags.publicDir, "public-dir", "public", "also write the reduced cache here if the directory exists")
	rootCmd.AddCommand(reduceCmd)
}
