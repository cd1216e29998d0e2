// Package chatlog extracts one speaker's sentences from exported QQ chat
// logs.
//
// An export starts with a fixed number of preamble lines, followed by
// message blocks. Each block opens with a header line holding a timestamp
// and the sender ("2020-02-16 12:34:56 Alice(10001)") and continues with the
// message lines until the next header.
package chatlog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/example/spake/internal/fsutil"
	"github.com/example/spake/internal/text"
)

var (
	headerRe  = regexp.MustCompile(`(\d*-\d*-\d* \d*:\d*:\d*) (.*)`)
	mentionRe = regexp.MustCompile(`@[^ ]* `)
	symbolRe  = regexp.MustCompile(`\[图片\]|\[表情\]|/扯一扯|/佛系|/抱抱`)
	punctRe   = regexp.MustCompile(`！|？|。|（|）|“|”|\?|\(|\)`)
)

// Client notices that never carry user text.
const flashImageNotice = "[闪照]请使用新版手机QQ查看闪照"

var noticePrefixes = []string{
	"[自动回复]",
	"对方不想和你",
	"对方已拒收了您的消息",
}

// Block is one message: a header line and the content lines under it.
type Block struct {
	Timestamp string
	Sender    string
	Lines     []string
}

// ParseBlocks groups lines into message blocks. Lines before the first
// header are ignored.
func ParseBlocks(lines []string) []Block {
	var blocks []Block
	for _, line := range lines {
		if m := headerRe.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, Block{Timestamp: m[1], Sender: m[2]})
			continue
		}

		if len(blocks) > 0 {
			last := &blocks[len(blocks)-1]
			last.Lines = append(last.Lines, line)
		}
	}

	return blocks
}

// Identity selects the sender whose messages are kept.
type Identity struct {
	// Handles match when any is a substring of the sender, e.g. a QQ number.
	Handles []string
	// Names match when any is a substring of the sender and the sender does
	// not contain ExcludeMarker. Exports show other members as
	// "Name(number)", the owner without the parenthesis.
	Names         []string
	ExcludeMarker string
}

// Empty reports whether no handle or name is configured.
func (id Identity) Empty() bool {
	return len(id.Handles) == 0 && len(id.Names) == 0
}

// Match reports whether sender belongs to the identity. An empty identity
// matches every sender.
func (id Identity) Match(sender string) bool {
	if id.Empty() {
		return true
	}

	for _, h := range id.Handles {
		if h != "" && strings.Contains(sender, h) {
			return true
		}
	}

	if id.ExcludeMarker != "" && strings.Contains(sender, id.ExcludeMarker) {
		return false
	}

	for _, n := range id.Names {
		if n != "" && strings.Contains(sender, n) {
			return true
		}
	}

	return false
}

// Extractor turns chat exports into a sorted, de-duplicated sentence list.
type Extractor struct {
	// HeaderLines are skipped at the top of every file.
	HeaderLines int
	Identity    Identity
	// MinChars is the shortest kept line, in characters.
	MinChars  int
	Encodings []string
	Logger    *slog.Logger
}

// DefaultExtractor returns the settings for QQ text exports.
func DefaultExtractor() Extractor {
	return Extractor{
		HeaderLines: 8,
		Identity:    Identity{ExcludeMarker: "("},
		MinChars:    12,
		Encodings:   []string{"utf-8", "gb18030"},
	}
}

func (e Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}

	return slog.Default()
}

// CleanLine strips mentions, stickers and punctuation from one message line.
// It reports false when the line must be dropped: client notices, purely
// numeric lines and lines shorter than MinChars after cleaning.
func (e Extractor) CleanLine(line string) (string, bool) {
	if line == flashImageNotice {
		return "", false
	}

	for _, p := range noticePrefixes {
		if strings.HasPrefix(line, p) {
			return "", false
		}
	}

	line = mentionRe.ReplaceAllString(line, "")
	line = symbolRe.ReplaceAllString(line, "")
	line = punctRe.ReplaceAllString(line, "")
	line = strings.TrimSpace(line)

	if text.IsNumeric(line) {
		return "", false
	}

	if utf8.RuneCountInString(line) < e.MinChars {
		return "", false
	}

	return line, true
}

// Extract returns the cleaned lines sent by the identity in one decoded
// export, in file order.
func (e Extractor) Extract(content string) []string {
	lines := strings.Split(text.NormalizeNewlines(content), "\n")
	if e.HeaderLines > 0 {
		lines = lines[min(e.HeaderLines, len(lines)):]
	}

	var out []string
	for _, b := range ParseBlocks(lines) {
		if !e.Identity.Match(b.Sender) {
			continue
		}

		for _, line := range b.Lines {
			if s, ok := e.CleanLine(line); ok {
				out = append(out, s)
			}
		}
	}

	return out
}

// ExtractFile decodes and extracts one export.
func (e Extractor) ExtractFile(path string) ([]string, error) {
	content, err := text.ReadFile(path, e.Encodings)
	if err != nil {
		return nil, err
	}

	return e.Extract(content), nil
}

// Result summarizes an ExtractDir run.
type Result struct {
	// Path is the written corpus file.
	Path string
	// Lines is the number of distinct sentences written.
	Lines int
	// Files is the number of exports read successfully.
	Files int
	// Failed lists exports that could not be decoded.
	Failed []text.FileError
}

// OutputPath is where ExtractDir writes the corpus for dir: a .txt file
// named after dir, next to it.
func OutputPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("chatlog: resolve %s: %w", dir, err)
	}

	return filepath.Join(filepath.Dir(abs), filepath.Base(abs)+".txt"), nil
}

// ExtractDir extracts every regular file in dir, merges the sentences,
// removes exact duplicates, sorts them and writes one sentence per line to
// OutputPath(dir). Files that fail to decode are skipped and reported in
// Result.Failed.
func (e Extractor) ExtractDir(dir string) (Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, fmt.Errorf("chatlog: read dir %s: %w", dir, err)
	}

	out, err := OutputPath(dir)
	if err != nil {
		return Result{}, err
	}

	log := e.logger()

	var (
		res   Result
		sents []string
	)

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		lines, err := e.ExtractFile(path)
		if err != nil {
			if errors.Is(err, text.ErrDecode) {
				log.Warn("skipping undecodable chat log", "file", path, "error", err)
				res.Failed = append(res.Failed, text.FileError{Path: path, Err: err})
				continue
			}
			return Result{}, fmt.Errorf("chatlog: %w", err)
		}

		log.Debug("chat log extracted", "file", path, "lines", len(lines))

		res.Files++
		sents = append(sents, lines...)
	}

	sents = lo.Uniq(sents)
	slices.Sort(sents)

	var b strings.Builder
	for _, s := range sents {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	if err := fsutil.WriteFile(out, []byte(b.String()), 0o644); err != nil {
		return Result{}, fmt.Errorf("chatlog: write corpus: %w", err)
	}

	res.Path = out
	res.Lines = len(sents)

	log.Info("chat corpus written", "file", out, "lines", res.Lines, "files", res.Files, "failed", len(res.Failed))

	return res, nil
}
