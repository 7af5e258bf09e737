// Package wordcount tallies case-insensitive occurrences of a word across
// collected page texts.
package wordcount

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fold lowercases s the way the report displays the target word.
// A new Caser is built per call since cases.Caser is not safe for concurrent use.
func Fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Count returns the total number of non-overlapping, case-insensitive
// occurrences of word in texts. The word is matched literally; an empty word
// counts zero.
func Count(texts []string, word string) int {
	total := 0
	for _, n := range CountEach(texts, word) {
		total += n
	}
	return total
}

// CountEach returns per-text occurrence counts, aligned with texts.
func CountEach(texts []string, word string) []int {
	counts := make([]int, len(texts))
	if word == "" {
		return counts
	}

	caser := cases.Lower(language.Und)
	needle := caser.String(word)
	for i, text := range texts {
		counts[i] = strings.Count(caser.String(text), needle)
	}
	return counts
}

// Summary formats the user-facing result line.
func Summary(count int, word string) string {
	return fmt.Sprintf("Found %d instances of '%s' in the body of the page", count, Fold(word))
}
