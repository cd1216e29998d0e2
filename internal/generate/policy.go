package generate

import (
	"fmt"

	"github.com/example/spake/internal/config"
	"github.com/example/spake/internal/ngram"
)

// Policy selects the next token from a successor distribution.
type Policy int

const (
	// Weighted draws r in [0,1) and walks successors in lexicographic order,
	// returning the first whose cumulative probability reaches r.
	Weighted Policy = iota
	// Uniform ignores probabilities and picks among the distinct successors.
	Uniform
)

// ParsePolicy accepts the policy names understood by the configuration.
func ParsePolicy(raw string) (Policy, error) {
	name, err := config.NormalizePolicy(raw)
	if err != nil {
		return 0, err
	}

	if name == config.PolicyUniform {
		return Uniform, nil
	}

	return Weighted, nil
}

func (p Policy) String() string {
	switch p {
	case Weighted:
		return config.PolicyWeighted
	case Uniform:
		return config.PolicyUniform
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Sample picks a successor from d. It reports false only for an empty
// distribution, which callers treat as the end of a walk.
func (p Policy) Sample(d ngram.Dist, src Source) (string, bool) {
	if len(d) == 0 {
		return "", false
	}

	keys := d.Keys()

	if p == Uniform {
		return keys[src.IntN(len(keys))], true
	}

	r := src.Float64()
	cum := 0.0
	for _, k := range keys {
		cum += d[k]
		if cum >= r {
			return k, true
		}
	}

	// Rounding left the total just below r.
	return keys[len(keys)-1], true
}
