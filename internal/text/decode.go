package text

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// ErrDecode is matched by every *DecodeError.
var ErrDecode = errors.New("no candidate encoding fits")

// DecodeError reports bytes that none of the candidate encodings could decode.
type DecodeError struct {
	Path  string
	Tried []string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode: %v (tried %s)", ErrDecode, strings.Join(e.Tried, ", "))
	}
	return fmt.Sprintf("decode %s: %v (tried %s)", e.Path, ErrDecode, strings.Join(e.Tried, ", "))
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

// DecodeWithFallback decodes data with the first candidate encoding that
// accepts it. Candidates are tried in order. "ascii" and "utf-8" are strict
// validity checks; other names are resolved through the WHATWG index
// (gb18030, gbk, big5, shift_jis, ...) and rejected when decoding has to
// substitute U+FFFD.
func DecodeWithFallback(data []byte, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", errors.New("decode: no candidate encodings")
	}

	for _, name := range candidates {
		s, ok, err := decodeAs(data, name)
		if err != nil {
			return "", err
		}
		if ok {
			return s, nil
		}
	}

	return "", &DecodeError{Tried: append([]string(nil), candidates...)}
}

// ReadFile reads path and decodes it with DecodeWithFallback.
func ReadFile(path string, candidates []string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	s, err := DecodeWithFallback(data, candidates)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Path = path
			return "", de
		}
		return "", err
	}

	return s, nil
}

func decodeAs(data []byte, name string) (string, bool, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ascii", "us-ascii":
		for _, b := range data {
			if b >= utf8.RuneSelf {
				return "", false, nil
			}
		}
		return string(data), true, nil
	case "utf-8", "utf8":
		if !utf8.Valid(data) {
			return "", false, nil
		}
		return string(data), true, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", false, fmt.Errorf("decode: unknown encoding %q: %w", name, err)
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false, nil
	}
	if !utf8.Valid(out) || strings.ContainsRune(string(out), utf8.RuneError) {
		return "", false, nil
	}

	return string(out), true, nil
}

// FileError records a per-file failure in a batch operation that carries on
// with the remaining files.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }
