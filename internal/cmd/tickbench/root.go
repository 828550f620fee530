package tickbench

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/tickstream/config"
	"github.com/arloliu/tickstream/format"
)

// NewRootCommand constructs the `tickbench` command.
func NewRootCommand() *cobra.Command {
	defaults := DefaultOptions()

	cmd := &cobra.Command{
		Use:          "tickbench",
		Short:        "Compare the wire cost of tickstream compression modes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			modeNames, _ := cmd.Flags().GetStringSlice("mode")
			asJSON, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			logger, err := cfg.Logging.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			opts := DefaultOptions()
			opts.Config = cfg
			opts.Signals, _ = cmd.Flags().GetInt("signals")
			opts.Cycles, _ = cmd.Flags().GetInt("cycles")
			opts.Interval, _ = cmd.Flags().GetDuration("interval")
			opts.BufferBlocks, _ = cmd.Flags().GetInt("buffer-blocks")
			opts.Seed, _ = cmd.Flags().GetUint64("seed")
			if opts.Modes, err = parseModes(modeNames); err != nil {
				return err
			}

			results, err := Run(cmd.Context(), opts, logger)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")

				return enc.Encode(results)
			}

			return printTable(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().String("config", "", "YAML or JSON configuration file")
	cmd.Flags().StringSlice("mode", []string{"all"}, "Compression modes to run: all|none|compact|pattern|tssc (repeatable)")
	cmd.Flags().Int("signals", defaults.Signals, "Signals published per cycle")
	cmd.Flags().Int("cycles", defaults.Cycles, "Publishing cycles")
	cmd.Flags().Duration("interval", defaults.Interval, "Timestamp spacing between cycles")
	cmd.Flags().Int("buffer-blocks", defaults.BufferBlocks, "Buffer blocks sent after the measurements")
	cmd.Flags().Uint64("seed", defaults.Seed, "Seed for the synthetic data")
	cmd.Flags().Bool("json", false, "Print results as JSON")

	return cmd
}

func parseModes(names []string) ([]format.CompressionMode, error) {
	var modes []format.CompressionMode
	seen := format.ModeSet(0)
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "all") {
			return DefaultOptions().Modes, nil
		}

		mode, err := format.ParseCompressionMode(name)
		if err != nil {
			return nil, fmt.Errorf("invalid --mode: %w", err)
		}
		if seen.Has(mode) {
			continue
		}
		seen |= format.NewModeSet(mode)
		modes = append(modes, mode)
	}

	return modes, nil
}

func printTable(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "mode\tmeasurements\tpackets\tbytes\tbytes/meas\tbuffer blocks\tpattern hits\telapsed\t")
	for _, r := range results {
		hits := "-"
		if r.PatternAttempts > 0 {
			hits = fmt.Sprintf("%d/%d", r.PatternAccepted, r.PatternAttempts)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t%d\t%s\t%s\t\n",
			r.Mode, r.Received, r.Packets, r.Bytes, r.BytesPerMeasurement, r.BufferBlocks, hits, r.Elapsed.Round(time.Millisecond))
	}

	return tw.Flush()
}
