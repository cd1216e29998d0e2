package bench

import (
	"context"
	"fmt"
	"io"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/example/spake/internal/ngram"
	"github.com/example/spake/internal/store"
	"github.com/example/spake/internal/tokenizer"
)

// StageTimings breaks one model build into its stages.
type StageTimings struct {
	Train  time.Duration
	Encode time.Duration
	Decode time.Duration
	Total  time.Duration
	Bytes  int
}

// ProfileStages trains on the corpus at path runs times, encoding and
// decoding the result each time, and reports per-stage durations.
func ProfileStages(ctx context.Context, corpusPath string, tok tokenizer.Tokenizer, runs int) ([]StageTimings, error) {
	if runs < 1 {
		return nil, fmt.Errorf("bench: runs must be >= 1, got %d", runs)
	}

	out := make([]StageTimings, 0, runs)
	for range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			st   StageTimings
			m    *ngram.Model
			data []byte
			err  error
		)
		start := time.Now()

		// Stage labels let a CPU profile taken around ProfileStages be split
		// with `go tool pprof -tagfocus stage=train`.
		pprof.Do(ctx, pprof.Labels("stage", "train"), func(context.Context) {
			m, err = ngram.TrainFile(corpusPath, tok)
		})
		if err != nil {
			return nil, err
		}
		st.Train = time.Since(start)

		mark := time.Now()
		pprof.Do(ctx, pprof.Labels("stage", "encode"), func(context.Context) {
			data, err = store.Encode(m)
		})
		if err != nil {
			return nil, err
		}
		st.Encode = time.Since(mark)
		st.Bytes = len(data)

		mark = time.Now()
		pprof.Do(ctx, pprof.Labels("stage", "decode"), func(context.Context) {
			_, err = store.Decode(data)
		})
		if err != nil {
			return nil, err
		}
		st.Decode = time.Since(mark)

		st.Total = time.Since(start)
		out = append(out, st)
	}

	return out, nil
}

// FormatStages writes one row per profiled build to w.
func FormatStages(runs []StageTimings, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %10s  %10s  %10s  %10s  %10s\n", "Run", "Train", "Encode", "Decode", "Total", "Bytes")
	fmt.Fprintln(sb, strings.Repeat("-", 66))

	for i, r := range runs {
		fmt.Fprintf(sb, "%-5d  %10.3f  %10.3f  %10.3f  %10.3f  %10d\n",
			i+1, ms(r.Train), ms(r.Encode), ms(r.Decode), ms(r.Total), r.Bytes)
	}

	fmt.Fprint(w, sb.String())
}
