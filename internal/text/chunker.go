package text

import (
	"regexp"
	"strings"
)

// Policy selects how an input document is split into generation units.
type Policy string

const (
	// PolicyParagraph splits on blank-line boundaries.
	PolicyParagraph Policy = "paragraph"
	// PolicySentence splits on runs of terminal punctuation.
	PolicySentence Policy = "sentence"
	// PolicyLength packs whitespace-delimited words greedily up to a
	// character budget, never splitting inside a word.
	PolicyLength Policy = "length"
	// PolicyWhole returns the entire input as a single unit. Any
	// unrecognized policy name falls back to this behavior; the fallback is
	// intentional, matching how callers have always used it.
	PolicyWhole Policy = "whole"
)

// DefaultMaxChars is the character budget for the length policy when the
// caller does not supply one.
const DefaultMaxChars = 200

// Options tunes policy behavior.
type Options struct {
	// MaxChars is the character budget per unit for the length policy.
	MaxChars int
}

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Split divides a text document into an ordered sequence of non-empty
// generation units according to the given policy. Unknown policies behave as
// PolicyWhole.
func Split(input string, policy Policy, opts Options) []string {
	switch policy {
	case PolicyParagraph:
		return splitParagraphs(input)
	case PolicySentence:
		return splitSentences(input)
	case PolicyLength:
		maxChars := opts.MaxChars
		if maxChars <= 0 {
			maxChars = DefaultMaxChars
		}
		return splitByLength(input, maxChars)
	default:
		return splitWhole(input)
	}
}

func splitParagraphs(input string) []string {
	var chunks []string
	for _, block := range strings.Split(input, "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}

func splitSentences(input string) []string {
	var chunks []string
	for _, frag := range sentenceEnd.Split(input, -1) {
		trimmed := strings.TrimSpace(frag)
		if trimmed == "" {
			continue
		}
		if !hasTerminalPunctuation(trimmed) {
			trimmed += "."
		}
		chunks = append(chunks, trimmed)
	}
	return chunks
}

func splitByLength(input string, maxChars int) []string {
	var chunks []string
	var current []string
	currentLen := 0

	for _, word := range strings.Fields(input) {
		if currentLen+len(word) > maxChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{word}
			currentLen = len(word)
		} else {
			current = append(current, word)
			currentLen += len(word) + 1 // account for the joining space
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

func splitWhole(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	return []string{input}
}

func hasTerminalPunctuation(s string) bool {
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
