package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/example/spake/internal/bench"
	"github.com/example/spake/internal/generate"
	"github.com/example/spake/internal/pipeline"
)

func newBenchCmd() *cobra.Command {
	var (
		runs       int
		sentences  int
		format     string
		maxMeanMS  float64
		stages     bool
		cpuProfile string
	)

	cmd := &cobra.Command{
		Use:   "bench [project]",
		Short: "Benchmark sentence generation or model build stages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if sentences < 1 {
				return fmt.Errorf("--sentences must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			s, err := openSession(args)
			if err != nil {
				return err
			}

			if cpuProfile != "" {
				f, ferr := os.Create(cpuProfile)
				if ferr != nil {
					return fmt.Errorf("create cpu profile: %w", ferr)
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = cerr
					}
				}()

				if err := pprof.StartCPUProfile(f); err != nil {
					return fmt.Errorf("start cpu profile: %w", err)
				}
				defer pprof.StopCPUProfile()
			}

			w := cmd.OutOrStdout()

			if stages {
				timings, err := bench.ProfileStages(cmd.Context(), s.Project.CorpusPath, s.Tokenizer, runs)
				if err != nil {
					return err
				}
				bench.FormatStages(timings, w)
				return nil
			}

			m, err := s.EnsureModel(cmd.Context())
			if err != nil {
				return err
			}

			g, err := generate.New(m, pipeline.GenerateDefaults(activeCfg))
			if err != nil {
				return err
			}

			results, err := bench.Run(cmd.Context(), g, runs, sentences)
			if err != nil {
				return err
			}
			stats := bench.Summarize(results)

			switch format {
			case "json":
				bench.FormatJSON(results, stats, w)
			default:
				bench.FormatTable(results, stats, w)
			}

			return bench.CheckMeanThreshold(stats.Mean, maxMeanMS)
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 5, "Number of timed runs")
	cmd.Flags().IntVar(&sentences, "sentences", 100, "Sentences generated per run")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&maxMeanMS, "max-mean-ms", 0, "Exit non-zero if the mean run exceeds this many milliseconds (0 = disabled)")
	cmd.Flags().BoolVar(&stages, "stages", false, "Time the train, encode and decode stages instead of generation")
	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")

	return cmd
}
