package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/example/spake/internal/ngram"
)

// Binary layout, all integers little endian or uvarint:
//
//	"SPKM" | uint16 version
//	PI:    uvarint n, n × string
//	T2:    uvarint n, n × (string x, uvarint m, m × (string y, float64 p))
//	T3:    uvarint n, n × (string x, uvarint k, k × (string y, uvarint m, m × (string z, float64 p)))
//	stats: uvarint sentences, tokens, vocab, uvarint n, n × string
//
// A string is a uvarint byte length followed by the bytes. Keys are written
// in strictly increasing order, which makes the encoding of a model unique.
const (
	magic   = "SPKM"
	version = 1
)

// Encode serializes m into the binary model format.
func Encode(m *ngram.Model) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("store: nil model")
	}

	var w writer
	w.buf.WriteString(magic)
	w.buf.Write(binary.LittleEndian.AppendUint16(nil, version))

	initial := sortedUnique(m.Initial)
	w.uvarint(uint64(len(initial)))
	for _, tok := range initial {
		w.str(tok)
	}

	xs := sortedKeys(m.Bigram)
	w.uvarint(uint64(len(xs)))
	for _, x := range xs {
		w.str(x)
		w.dist(m.Bigram[x])
	}

	xs = sortedKeys(m.Trigram)
	w.uvarint(uint64(len(xs)))
	for _, x := range xs {
		w.str(x)
		row := m.Trigram[x]
		ys := sortedKeys(row)
		w.uvarint(uint64(len(ys)))
		for _, y := range ys {
			w.str(y)
			w.dist(row[y])
		}
	}

	w.uvarint(uint64(m.Stats.Sentences))
	w.uvarint(uint64(m.Stats.Tokens))
	w.uvarint(uint64(m.Stats.Vocab))
	w.uvarint(uint64(len(m.Stats.TopTokens)))
	for _, tok := range m.Stats.TopTokens {
		w.str(tok)
	}

	return w.buf.Bytes(), nil
}

// Decode parses the binary model format and validates the result. Every
// failure matches ErrCorruptModel.
func Decode(data []byte) (*ngram.Model, error) {
	if len(data) < len(magic)+2 || string(data[:len(magic)]) != magic {
		return nil, corrupt("bad magic")
	}

	if v := binary.LittleEndian.Uint16(data[len(magic):]); v != version {
		return nil, corrupt("unsupported version %d", v)
	}

	r := &reader{data: data, off: len(magic) + 2}
	m := ngram.New()

	n := r.count()
	m.Initial = make([]string, 0, n)
	for range n {
		m.Initial = append(m.Initial, r.str())
	}
	r.increasing("PI", m.Initial)

	n = r.count()
	xs := make([]string, 0, n)
	for range n {
		x := r.str()
		xs = append(xs, x)
		m.Bigram[x] = r.dist()
	}
	r.increasing("T2", xs)

	n = r.count()
	xs = xs[:0]
	for range n {
		x := r.str()
		xs = append(xs, x)

		k := r.count()
		row := make(map[string]ngram.Dist, k)
		ys := make([]string, 0, k)
		for range k {
			y := r.str()
			ys = append(ys, y)
			row[y] = r.dist()
		}
		r.increasing("T3 row "+x, ys)
		m.Trigram[x] = row
	}
	r.increasing("T3", xs)

	m.Stats.Sentences = r.int("sentences")
	m.Stats.Tokens = r.int("tokens")
	m.Stats.Vocab = r.int("vocab")
	if n = r.count(); n > 0 {
		m.Stats.TopTokens = make([]string, 0, n)
		for range n {
			m.Stats.TopTokens = append(m.Stats.TopTokens, r.str())
		}
	}

	if r.err != nil {
		return nil, r.err
	}

	if r.off != len(data) {
		return nil, corrupt("%d trailing bytes", len(data)-r.off)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}

	return m, nil
}

type writer struct {
	buf bytes.Buffer
}

func (w *writer) uvarint(v uint64) {
	w.buf.Write(binary.AppendUvarint(nil, v))
}

func (w *writer) str(s string) {
	w.uvarint(uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *writer) dist(d ngram.Dist) {
	keys := d.Keys()
	w.uvarint(uint64(len(keys)))
	for _, k := range keys {
		w.str(k)
		w.buf.Write(binary.LittleEndian.AppendUint64(nil, math.Float64bits(d[k])))
	}
}

// reader decodes sequentially and keeps the first error; later calls return
// zero values once an error is set.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = corrupt("offset %d: "+format, append([]any{r.off}, args...)...)
	}
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}

	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		r.fail("bad varint")
		return 0
	}
	r.off += n

	return v
}

// int reads a non-negative statistic.
func (r *reader) int(what string) int {
	v := r.uvarint()
	if r.err != nil {
		return 0
	}

	if v > math.MaxInt {
		r.fail("%s %d out of range", what, v)
		return 0
	}

	return int(v)
}

// count reads an element count. Every element takes at least one byte, so a
// count larger than the remaining input is rejected before allocating.
func (r *reader) count() int {
	v := r.uvarint()
	if r.err != nil {
		return 0
	}

	if v > uint64(len(r.data)-r.off) {
		r.fail("count %d exceeds remaining %d bytes", v, len(r.data)-r.off)
		return 0
	}

	return int(v)
}

func (r *reader) str() string {
	n := r.count()
	if r.err != nil {
		return ""
	}

	s := string(r.data[r.off : r.off+n])
	r.off += n

	return s
}

func (r *reader) prob() float64 {
	if r.err != nil {
		return 0
	}

	if len(r.data)-r.off < 8 {
		r.fail("truncated probability")
		return 0
	}

	v := math.Float64frombits(binary.LittleEndian.Uint64(r.data[r.off:]))
	r.off += 8

	return v
}

func (r *reader) dist() ngram.Dist {
	n := r.count()
	d := make(ngram.Dist, n)
	keys := make([]string, 0, n)
	for range n {
		k := r.str()
		keys = append(keys, k)
		d[k] = r.prob()
	}
	r.increasing("distribution", keys)

	return d
}

func (r *reader) increasing(what string, keys []string) {
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			r.fail("%s keys not strictly increasing at %q", what, keys[i])
			return
		}
	}
}
