package ngram

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/example/spake/internal/tokenizer"
)

// ErrMissingCorpus is returned by TrainFile when the corpus artifact does not exist.
var ErrMissingCorpus = errors.New("ngram: corpus not found")

// minLineTokens is the shortest tokenized line that contributes to the model.
// Shorter lines cannot form a trigram context.
const minLineTokens = 3

// defaultTopN is how many of the most frequent tokens are considered for
// Stats.TopTokens before stop words are removed.
const defaultTopN = 100

// maxLineBytes bounds a single corpus line.
const maxLineBytes = 16 << 20

type trainConfig struct {
	stopwords map[string]struct{}
	topN      int
	logger    *slog.Logger
}

// TrainOption configures Train.
type TrainOption func(*trainConfig)

// WithStopwords excludes words from Stats.TopTokens.
func WithStopwords(words []string) TrainOption {
	return func(c *trainConfig) {
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				c.stopwords[w] = struct{}{}
			}
		}
	}
}

// WithTopN sets how many frequent tokens are ranked for Stats.TopTokens.
func WithTopN(n int) TrainOption {
	return func(c *trainConfig) {
		if n >= 0 {
			c.topN = n
		}
	}
}

// WithLogger sets the logger used for training progress.
func WithLogger(logger *slog.Logger) TrainOption {
	return func(c *trainConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Train builds a model from a corpus with one sentence per line. Lines that
// tokenize to fewer than three tokens are skipped. The first token of every
// kept line joins PI; adjacent pairs and triples are counted into T2 and T3
// and normalized per context once the whole corpus has been read.
func Train(r io.Reader, tok tokenizer.Tokenizer, opts ...TrainOption) (*Model, error) {
	cfg := trainConfig{
		stopwords: make(map[string]struct{}),
		topN:      defaultTopN,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()

	initial := make(map[string]struct{})
	c2 := make(counts2)
	c3 := make(counts3)
	freq := make(map[string]int)

	var stats Stats

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		raw, err := tok.Tokenize(line)
		if err != nil {
			return nil, fmt.Errorf("ngram: tokenize line %d: %w", lineNo, err)
		}

		toks := make([]string, 0, len(raw))
		for _, t := range raw {
			if t != "" {
				toks = append(toks, t)
			}
		}

		if len(toks) < minLineTokens {
			continue
		}

		stats.Sentences++
		stats.Tokens += len(toks)
		initial[toks[0]] = struct{}{}

		for i, t := range toks {
			freq[t]++
			if i+1 < len(toks) {
				c2.row(t)[toks[i+1]]++
			}
			if i+2 < len(toks) {
				c3.row(t, toks[i+1])[toks[i+2]]++
			}
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ngram: read corpus: %w", err)
	}

	m := New()
	for tok := range initial {
		m.Initial = append(m.Initial, tok)
	}
	slices.Sort(m.Initial)

	for x, row := range c2 {
		m.Bigram[x] = normalize(row)
	}

	for x, inner := range c3 {
		m.Trigram[x] = make(map[string]Dist, len(inner))
		for y, row := range inner {
			m.Trigram[x][y] = normalize(row)
		}
	}

	stats.Vocab = len(freq)
	stats.TopTokens = topTokens(freq, cfg.topN, cfg.stopwords)
	m.Stats = stats

	bigrams, trigrams := m.Contexts()
	cfg.logger.Debug("ngram trained",
		"lines", lineNo,
		"sentences", stats.Sentences,
		"tokens", stats.Tokens,
		"vocab", stats.Vocab,
		"bigram_contexts", bigrams,
		"trigram_contexts", trigrams,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return m, nil
}

// TrainFile opens a corpus artifact and trains on it.
func TrainFile(path string, tok tokenizer.Tokenizer, opts ...TrainOption) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingCorpus, path)
		}
		return nil, fmt.Errorf("ngram: open corpus: %w", err)
	}
	defer f.Close()

	return Train(f, tok, opts...)
}

// topTokens ranks tokens by frequency (ties lexicographic), keeps the first n
// and then removes stop words.
func topTokens(freq map[string]int, n int, stopwords map[string]struct{}) []string {
	ranked := make([]string, 0, len(freq))
	for tok := range freq {
		ranked = append(ranked, tok)
	}

	slices.SortFunc(ranked, func(a, b string) int {
		if freq[a] != freq[b] {
			return freq[b] - freq[a]
		}
		return strings.Compare(a, b)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	out := ranked[:0]
	for _, tok := range ranked {
		if _, stop := stopwords[tok]; !stop {
			out = append(out, tok)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
