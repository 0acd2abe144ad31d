// Package moderation rewrites forbidden words out of relayed payloads.
// The relay applies it, when configured, to room messages before fan-out.
package moderation

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// leet maps common obfuscation characters back to their letter.
var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

// Censor matches a normalized form of the payload against an Aho-Corasick
// automaton and masks the original characters of every match, preserving
// the payload's length and spacing.
type Censor struct {
	machine     *goahocorasick.Machine
	replacement rune
}

func NewCensor(words []string, replacement rune) (*Censor, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		if norm := normalize([]rune(w)); len(norm) > 0 {
			patterns = append(patterns, norm)
		}
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{machine: m, replacement: replacement}, nil
}

// Apply returns the payload with every forbidden span masked. JSON
// payloads are masked inside their string values only, never across
// structural characters, so the frame stays well formed. Anything else
// is masked as plain text. Payloads with no match come back untouched.
func (c *Censor) Apply(payload []byte) []byte {
	var decoded any
	if json.Unmarshal(payload, &decoded) == nil {
		masked, changed := c.maskValue(decoded)
		if !changed {
			return payload
		}
		out, err := json.Marshal(masked)
		if err != nil {
			return payload
		}
		return out
	}
	return []byte(c.maskText(string(payload)))
}

// maskValue walks a decoded JSON value and masks every string leaf.
func (c *Censor) maskValue(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		masked := c.maskText(t)
		return masked, masked != t
	case []any:
		changed := false
		for i := range t {
			var ch bool
			t[i], ch = c.maskValue(t[i])
			changed = changed || ch
		}
		return t, changed
	case map[string]any:
		changed := false
		for k := range t {
			var ch bool
			t[k], ch = c.maskValue(t[k])
			changed = changed || ch
		}
		return t, changed
	default:
		return v, false
	}
}

func (c *Censor) maskText(text string) string {
	original := []rune(text)

	// Normalize while remembering where each kept rune came from, so a
	// match in normalized space can be mapped back onto the original.
	norm := make([]rune, 0, len(original))
	origIdx := make([]int, 0, len(original))
	for i, r := range original {
		clean := r
		if mapped, ok := leet[r]; ok {
			clean = mapped
		}
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	if len(norm) == 0 {
		return text
	}

	spans := c.machine.MultiPatternSearch(norm, false)
	if len(spans) == 0 {
		return text
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			original[i] = c.replacement
		}
	}
	return string(original)
}

func normalize(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if mapped, ok := leet[r]; ok {
			r = mapped
		}
		if isNoise(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}

// isNoise identifies characters ignored during pattern matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}

// LoadWordsFile reads one forbidden word per line, skipping blanks and
// lines starting with '#'.
func LoadWordsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, scanner.Err()
}
