package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanFindsWordsCaseInsensitive(t *testing.T) {
	lex := NewLexicon(map[string]int{"badword": 6, "worse": 9})

	result := lex.Scan("This has a BadWord in it, badword twice actually")
	assert.Equal(t, 6, result.MaxSeverity)
	assert.Len(t, result.Matches, 1)
	assert.Equal(t, 2, result.Matches[0].Count)
}

func TestScanMaxSeverity(t *testing.T) {
	lex := NewLexicon(map[string]int{"badword": 6, "worse": 9})
	result := lex.Scan("badword and worse together")
	assert.Equal(t, 9, result.MaxSeverity)
	assert.Len(t, result.Matches, 2)
}

func TestScanNoMatchOnSubstrings(t *testing.T) {
	lex := NewLexicon(map[string]int{"ass": 8})
	result := lex.Scan("classic assassin passes")
	assert.Empty(t, result.Matches)
	assert.Equal(t, 0, result.MaxSeverity)
}

func TestScanDeterministic(t *testing.T) {
	lex := NewLexicon(map[string]int{"spam": 4})
	a := lex.Scan("spam spam spam")
	b := lex.Scan("spam spam spam")
	assert.Equal(t, a, b)
}
