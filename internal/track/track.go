// Package track picks default audio and subtitle tracks for a user's
// preferred language. Language identifiers are normalized from two- and
// three-letter codes, full English names and name prefixes into ISO 639-2
// codes before comparison.
package track

import (
	"strings"
	"unicode"

	"flixclusive/internal/media"
)

// Normalize maps a language identifier to its ISO 639-2 code. Identifiers that
// cannot be resolved are returned cleaned (lowercase, single-spaced tokens).
func Normalize(code string) string {
	tokens := strings.FieldsFunc(strings.ToLower(code), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return ""
	}

	for n := len(tokens); n > 0; n-- {
		for start := 0; start+n <= len(tokens); start++ {
			span := strings.Join(tokens[start:start+n], " ")
			if l, ok := lookup(span); ok {
				return l.iso3
			}
		}
	}

	return strings.Join(tokens, " ")
}

// DisplayName returns the English name for a normalized code, or the code
// itself when it is not a known language.
func DisplayName(normalized string) string {
	if idx, ok := byISO3[normalized]; ok {
		return languages[idx].name
	}
	return normalized
}

// Matches reports whether two language identifiers refer to the same language.
func Matches(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.EqualFold(DisplayName(na), DisplayName(nb))
}

// PreferredIndex returns the index of the first language matching preferred,
// or 0 when nothing matches.
func PreferredIndex(langs []string, preferred string) int {
	want := Normalize(preferred)
	if want == "" {
		return 0
	}
	wantName := DisplayName(want)

	for i, l := range langs {
		got := Normalize(l)
		if got == "" {
			continue
		}
		if got == want || strings.EqualFold(DisplayName(got), wantName) {
			return i
		}
	}
	return 0
}

// SubtitleIndex picks the default subtitle from an Off-prefixed list. It
// returns 0 (off) when no real track matches.
func SubtitleIndex(subs []media.Subtitle, preferred string) int {
	if len(subs) <= 1 {
		return 0
	}
	langs := make([]string, len(subs)-1)
	for i, s := range subs[1:] {
		langs[i] = subtitleLanguage(s)
	}
	idx := PreferredIndex(langs, preferred)
	if idx == 0 && !Matches(langs[0], preferred) {
		return 0
	}
	return idx + 1
}

// AudioIndex picks the default audio track. It returns 0 when nothing matches.
func AudioIndex(tracks []media.AudioTrack, preferred string) int {
	langs := make([]string, len(tracks))
	for i, t := range tracks {
		langs[i] = t.Language
		if langs[i] == "" {
			langs[i] = t.Label
		}
	}
	return PreferredIndex(langs, preferred)
}

func subtitleLanguage(s media.Subtitle) string {
	if s.Language != "" {
		return s.Language
	}
	return s.Label
}
