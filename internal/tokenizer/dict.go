package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-ego/gse"
)

// userWordFreq is assigned to dictionary words listed without a frequency.
// It is large enough for a listed word to beat its own sub-words.
const userWordFreq = 100000

// Dict segments Chinese text with gse, a Go port of jieba, over its embedded
// simplified-Chinese dictionary plus optional user words. Whitespace is
// dropped; every other segment is a token.
type Dict struct {
	seg   *gse.Segmenter
	words int
}

// embedded is the shared segmenter without user words. Loading the
// dictionary takes a while, so it happens once per process.
var embedded = sync.OnceValues(func() (*gse.Segmenter, error) {
	return loadSegmenter()
})

func loadSegmenter() (*gse.Segmenter, error) {
	seg := &gse.Segmenter{SkipLog: true}
	if err := seg.LoadDictEmbed(); err != nil {
		return nil, fmt.Errorf("load embedded dictionary: %w", err)
	}

	return seg, nil
}

// Entry is one user dictionary word. Freq 0 means userWordFreq.
type Entry struct {
	Word string
	Freq float64
	Tag  string
}

// NewDict builds a segmenter over the embedded dictionary extended with
// entries.
func NewDict(entries ...Entry) (*Dict, error) {
	if len(entries) == 0 {
		seg, err := embedded()
		if err != nil {
			return nil, err
		}
		return &Dict{seg: seg}, nil
	}

	seg, err := loadSegmenter()
	if err != nil {
		return nil, err
	}

	d := &Dict{seg: seg}
	for _, e := range entries {
		word := strings.TrimSpace(strings.TrimPrefix(e.Word, "\ufeff"))
		if word == "" {
			continue
		}

		freq := e.Freq
		if freq <= 0 {
			freq = userWordFreq
		}

		var tags []string
		if e.Tag != "" {
			tags = append(tags, e.Tag)
		}

		if err := seg.AddToken(word, freq, tags...); err != nil {
			return nil, fmt.Errorf("add dictionary word %q: %w", word, err)
		}
		d.words++
	}

	return d, nil
}

// LoadDict reads a jieba-style user dictionary ("word [freq [tag]]" per
// line) on top of the embedded dictionary. Blank lines and lines starting
// with # are skipped.
func LoadDict(path string) (*Dict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary %q: %w", path, err)
	}
	defer f.Close()

	var entries []Entry

	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		e := Entry{Word: fields[0]}

		if len(fields) > 1 {
			freq, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("dictionary %q line %d: bad frequency %q", path, n, fields[1])
			}
			e.Freq = freq
		}
		if len(fields) > 2 {
			e.Tag = fields[2]
		}

		entries = append(entries, e)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary %q: %w", path, err)
	}

	return NewDict(entries...)
}

// Len reports the number of user words added on top of the embedded
// dictionary.
func (d *Dict) Len() int { return d.words }

// Tokenize implements Tokenizer.
func (d *Dict) Tokenize(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var tokens []string
	for _, seg := range d.seg.Cut(text, true) {
		if seg = strings.TrimSpace(seg); seg != "" {
			tokens = append(tokens, seg)
		}
	}

	return tokens, nil
}
