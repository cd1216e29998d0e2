// Package bench provides benchmarking primitives for the spake bench command.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/spake/internal/generate"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and output size for one batch of generations.
type RunResult struct {
	Index     int
	Cold      bool // true for the first run
	Duration  time.Duration
	Sentences int
	Tokens    int
	// TokensPerSec is Tokens / Duration.
	TokensPerSec float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
	// TokensPerSec is the throughput over all runs together.
	TokensPerSec float64
}

// ComputeStats calculates min, max and mean over a slice of durations.
// The slice must be non-empty.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Summarize aggregates runs, including overall token throughput.
func Summarize(runs []RunResult) Stats {
	durations := make([]time.Duration, len(runs))
	var (
		total  time.Duration
		tokens int
	)
	for i, r := range runs {
		durations[i] = r.Duration
		total += r.Duration
		tokens += r.Tokens
	}

	s := ComputeStats(durations)
	s.TokensPerSec = Throughput(tokens, total)

	return s
}

// Throughput returns tokens per second. Returns 0 if d is zero to avoid
// division by zero.
func Throughput(tokens int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(tokens) / d.Seconds()
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

// Run performs runs batches of perRun generations each and times them.
func Run(ctx context.Context, g *generate.Generator, runs, perRun int) ([]RunResult, error) {
	if runs < 1 || perRun < 1 {
		return nil, fmt.Errorf("bench: runs and sentences per run must be >= 1 (got %d, %d)", runs, perRun)
	}

	results := make([]RunResult, 0, runs)
	for i := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := RunResult{Index: i, Cold: i == 0}

		start := time.Now()
		for range perRun {
			toks, err := g.Tokens()
			if err != nil {
				return nil, fmt.Errorf("bench: run %d: %w", i+1, err)
			}
			res.Sentences++
			res.Tokens += len(toks)
		}
		res.Duration = time.Since(start)
		res.TokensPerSec = Throughput(res.Tokens, res.Duration)

		results = append(results, res)
	}

	return results, nil
}

// ---------------------------------------------------------------------------
// Mean-duration threshold gate
// ---------------------------------------------------------------------------

// CheckMeanThreshold returns an error if the mean run duration exceeds
// maxMeanMS milliseconds. A threshold of 0 disables the gate.
func CheckMeanThreshold(mean time.Duration, maxMeanMS float64) error {
	if maxMeanMS <= 0 {
		return nil
	}
	meanMS := float64(mean) / float64(time.Millisecond)
	if meanMS > maxMeanMS {
		return fmt.Errorf("mean run time %.3f ms exceeds threshold %.3f ms", meanMS, maxMeanMS)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %9s  %8s  %12s\n", "Run", "Cold", "MS", "Sentences", "Tokens", "Tokens/s")
	fmt.Fprintln(sb, strings.Repeat("-", 60))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.3f  %9d  %8d  %12.0f\n",
			r.Index+1,
			cold,
			ms(r.Duration),
			r.Sentences,
			r.Tokens,
			r.TokensPerSec,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 60))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  (min)\n", "", "", ms(stats.Min))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  (mean)\n", "", "", ms(stats.Mean))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  (max)\n", "", "", ms(stats.Max))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.0f  (tokens/s)\n", "", "", stats.TokensPerSec)

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index        int     `json:"index"`
	Cold         bool    `json:"cold"`
	DurationMS   float64 `json:"duration_ms"`
	Sentences    int     `json:"sentences"`
	Tokens       int     `json:"tokens"`
	TokensPerSec float64 `json:"tokens_per_sec"`
}

type jsonStats struct {
	MinMS        float64 `json:"min_ms"`
	MeanMS       float64 `json:"mean_ms"`
	MaxMS        float64 `json:"max_ms"`
	TokensPerSec float64 `json:"tokens_per_sec"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:        ms(stats.Min),
			MeanMS:       ms(stats.Mean),
			MaxMS:        ms(stats.Max),
			TokensPerSec: stats.TokensPerSec,
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:        r.Index,
			Cold:         r.Cold,
			DurationMS:   ms(r.Duration),
			Sentences:    r.Sentences,
			Tokens:       r.Tokens,
			TokensPerSec: r.TokensPerSec,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}
