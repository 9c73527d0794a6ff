package scrape

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode"
)

// Normalize uppercases a VAT number and strips whitespace, dots and dashes.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '.' || r == '-' {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
}

// Numbers yields the normalized, non-empty values of raw.
func Numbers(raw iter.Seq[string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		for s := range raw {
			if n := Normalize(s); n != "" && !yield(n) {
				return
			}
		}
	}
}

// ReadLines reads line-delimited VAT numbers from r.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read numbers: %w", err)
	}
	return lines, nil
}

// SplitNumber separates the two-letter member state prefix from the rest.
func SplitNumber(number string) (country, rest string) {
	if len(number) < 2 {
		return number, ""
	}
	return number[:2], number[2:]
}
