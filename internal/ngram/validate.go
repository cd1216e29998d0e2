package ngram

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon is the tolerance for probability range and sum checks.
const Epsilon = 1e-9

// ErrInvariant is matched by every *InvariantError.
var ErrInvariant = errors.New("ngram: model invariant violated")

// InvariantError describes a structurally invalid table entry.
type InvariantError struct {
	Table   string // "PI", "T2", "T3" or "Stats"
	Context string
	Token   string
	Value   float64
	Reason  string
}

func (e *InvariantError) Error() string {
	switch {
	case e.Table == "PI", e.Table == "Stats":
		return fmt.Sprintf("%v: %s: %s", ErrInvariant, e.Table, e.Reason)
	case e.Token != "":
		return fmt.Sprintf("%v: %s[%q][%q] = %g: %s", ErrInvariant, e.Table, e.Context, e.Token, e.Value, e.Reason)
	default:
		return fmt.Sprintf("%v: %s[%q]: %s", ErrInvariant, e.Table, e.Context, e.Reason)
	}
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Validate checks that the statistics are non-negative, that every PI entry is a non-empty token and that every
// T2 and T3 distribution is non-empty, has each probability in [0,1] and sums
// to 1, all within Epsilon. Contexts are visited in sorted order so the
// reported violation is stable.
func (m *Model) Validate() error {
	if m.Stats.Sentences < 0 || m.Stats.Tokens < 0 || m.Stats.Vocab < 0 {
		return &InvariantError{Table: "Stats", Reason: fmt.Sprintf("negative count (sentences %d, tokens %d, vocab %d)",
			m.Stats.Sentences, m.Stats.Tokens, m.Stats.Vocab)}
	}

	for _, tok := range m.Initial {
		if tok == "" {
			return &InvariantError{Table: "PI", Reason: "empty token"}
		}
	}

	for _, x := range sortedKeys(m.Bigram) {
		if err := checkDist("T2", x, m.Bigram[x]); err != nil {
			return err
		}
	}

	for _, x := range sortedKeys(m.Trigram) {
		row := m.Trigram[x]
		if len(row) == 0 {
			return &InvariantError{Table: "T3", Context: x, Reason: "empty context row"}
		}
		for _, y := range sortedKeys(row) {
			if err := checkDist("T3", x+" "+y, row[y]); err != nil {
				return err
			}
		}
	}

	return nil
}

func checkDist(table, ctx string, d Dist) error {
	if len(d) == 0 {
		return &InvariantError{Table: table, Context: ctx, Reason: "empty distribution"}
	}

	sum := 0.0
	for _, tok := range d.Keys() {
		p := d[tok]
		if math.IsNaN(p) || p < -Epsilon || p > 1+Epsilon {
			return &InvariantError{Table: table, Context: ctx, Token: tok, Value: p, Reason: "probability out of range"}
		}
		sum += p
	}

	if math.Abs(sum-1) > Epsilon {
		return &InvariantError{Table: table, Context: ctx, Value: sum, Reason: fmt.Sprintf("probabilities sum to %.12g", sum)}
	}

	return nil
}
