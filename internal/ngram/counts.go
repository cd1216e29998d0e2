package ngram

// counts2 accumulates bigram counts. row returns the successor counter for x,
// inserting an empty one on first use.
type counts2 map[string]map[string]int

func (c counts2) row(x string) map[string]int {
	r, ok := c[x]
	if !ok {
		r = make(map[string]int)
		c[x] = r
	}

	return r
}

// counts3 accumulates trigram counts keyed by (x, y).
type counts3 map[string]counts2

func (c counts3) row(x, y string) map[string]int {
	inner, ok := c[x]
	if !ok {
		inner = make(counts2)
		c[x] = inner
	}

	return inner.row(y)
}

// normalize turns a successor counter into a probability distribution.
func normalize(row map[string]int) Dist {
	total := 0
	for _, n := range row {
		total += n
	}

	dist := make(Dist, len(row))
	for tok, n := range row {
		dist[tok] = float64(n) / float64(total)
	}

	return dist
}
