// Package ngram trains word-level bigram and trigram transition tables from a
// line-oriented corpus.
//
// A Model holds the initial-token set (PI), the bigram table T2 mapping a
// token to its successor distribution, and the trigram table T3 mapping a
// token pair to its successor distribution. Probabilities are maximum
// likelihood estimates without smoothing; a context that never occurred in
// training has no entry at all.
package ngram

import (
	"slices"

	"golang.org/x/exp/maps"
)

// Dist is a successor distribution: token -> probability.
type Dist map[string]float64

// Keys returns the successor tokens in lexicographic order.
func (d Dist) Keys() []string {
	return sortedKeys(d)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)

	return keys
}

// Bigram is T2: x -> (y -> P(y|x)).
type Bigram map[string]Dist

// Trigram is T3: x -> y -> (z -> P(z|x,y)).
type Trigram map[string]map[string]Dist

// Stats summarizes the corpus a model was trained on.
type Stats struct {
	Sentences int      `json:"sentences"`
	Tokens    int      `json:"tokens"`
	Vocab     int      `json:"vocab"`
	TopTokens []string `json:"top_tokens,omitempty"`
}

// Model is a trained n-gram model. It is not mutated after Train or a store
// load returns it, so one instance may be shared by concurrent readers.
type Model struct {
	// Initial is PI, the distinct line-initial tokens in sorted order.
	Initial []string
	Bigram  Bigram
	Trigram Trigram
	Stats   Stats
}

// New returns an empty model with allocated tables.
func New() *Model {
	return &Model{
		Bigram:  make(Bigram),
		Trigram: make(Trigram),
	}
}

// Empty reports whether the model has no initial tokens.
func (m *Model) Empty() bool {
	return m == nil || len(m.Initial) == 0
}

// Successors2 returns T2[x], or nil when x was never followed by anything.
func (m *Model) Successors2(x string) Dist {
	return m.Bigram[x]
}

// Successors3 returns T3[x][y], or nil when the pair has no recorded successor.
func (m *Model) Successors3(x, y string) Dist {
	return m.Trigram[x][y]
}

// Followers returns the sorted tokens y for which T3[x][y] exists.
func (m *Model) Followers(x string) []string {
	row := m.Trigram[x]
	if len(row) == 0 {
		return nil
	}

	return sortedKeys(row)
}

// Vocabulary returns every token appearing anywhere in the model, sorted.
func (m *Model) Vocabulary() []string {
	seen := make(map[string]struct{})
	for _, tok := range m.Initial {
		seen[tok] = struct{}{}
	}

	for x, dist := range m.Bigram {
		seen[x] = struct{}{}
		for y := range dist {
			seen[y] = struct{}{}
		}
	}

	for x, row := range m.Trigram {
		seen[x] = struct{}{}
		for y, dist := range row {
			seen[y] = struct{}{}
			for z := range dist {
				seen[z] = struct{}{}
			}
		}
	}

	return sortedKeys(seen)
}

// Contexts reports the number of bigram and trigram contexts.
func (m *Model) Contexts() (bigram, trigram int) {
	bigram = len(m.Bigram)
	for _, row := range m.Trigram {
		trigram += len(row)
	}

	return bigram, trigram
}
