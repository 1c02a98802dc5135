package moderation

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// WordMatch is one sensitive-word hit in the scanned text.
type WordMatch struct {
	Word     string `json:"word"`
	Severity int    `json:"severity"`
	Count    int    `json:"count"`
}

// ScanResult summarizes a lexicon pass over one comment.
type ScanResult struct {
	Matches     []WordMatch
	MaxSeverity int
}

// Lexicon is a case-insensitive sensitive-word list with per-word severities
// on a 1..10 scale. It is immutable after construction.
type Lexicon struct {
	words map[string]int
}

// NewLexicon builds a lexicon from a word→severity map.
func NewLexicon(words map[string]int) *Lexicon {
	normalized := make(map[string]int, len(words))
	for w, sev := range words {
		normalized[strings.ToLower(strings.TrimSpace(w))] = sev
	}
	return &Lexicon{words: normalized}
}

// LoadLexiconFile reads a lexicon from a file of "word severity" lines.
// Blank lines and lines starting with # are skipped.
func LoadLexiconFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon file: %w", err)
	}
	defer f.Close()

	words := make(map[string]int)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		sev := 5
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil {
				sev = n
			}
		}
		words[strings.ToLower(fields[0])] = sev
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewLexicon(words), nil
}

// Scan tokenizes text and returns every lexicon hit with its severity. The
// scan is deterministic: same text, same result.
func (l *Lexicon) Scan(text string) ScanResult {
	counts := make(map[string]int)
	for _, token := range tokenize(text) {
		if _, ok := l.words[token]; ok {
			counts[token]++
		}
	}

	result := ScanResult{}
	for word, count := range counts {
		sev := l.words[word]
		result.Matches = append(result.Matches, WordMatch{Word: word, Severity: sev, Count: count})
		if sev > result.MaxSeverity {
			result.MaxSeverity = sev
		}
	}
	return result
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
