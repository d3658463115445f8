package matching

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

var (
	prefixed   = regexp.MustCompile(`^([A-Z]{2,3})(\d+)$`)
	letterCode = regexp.MustCompile(`^([A-Z])(\d{3})$`)
	numbered   = regexp.MustCompile(`^(\d{1,2})(\d{3})([A-Z]?)$`)
	rarityTail = regexp.MustCompile(`^(\d{1,2}-\d{3})[A-Z]$`)
	upper      = cases.Upper(language.Und)
)

const codeDivider = "/"

// Normalize folds a raw card number into its canonical form: full-width characters folded,
// separators stripped, upper-cased, and the canonical hyphen re-inserted for recognized shapes
// (PR-001, B-001, 1-001H). Unrecognized shapes are returned stripped and upper-cased.
func Normalize(raw string) string {
	folded := upper.String(width.Fold.String(raw))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	s := b.String()

	if m := prefixed.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + m[2]
	}
	if m := letterCode.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + m[2]
	}
	if m := numbered.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + m[2] + m[3]
	}
	return s
}

// Base normalizes code and drops a trailing rarity letter from numbered codes ("1-001H" -> "1-001").
func Base(code string) string {
	n := Normalize(code)
	if m := rarityTail.FindStringSubmatch(n); m != nil {
		return m[1]
	}
	return n
}

// SplitCodes splits a packed code ("1-001H/PR-001") into normalized fragments.
func SplitCodes(raw string) []string {
	parts := strings.Split(raw, codeDivider)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := Normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

var rarityNames = map[string]string{
	"COMMON":    "C",
	"RARE":      "R",
	"HERO":      "H",
	"LEGEND":    "L",
	"STARTER":   "S",
	"PROMO":     "P",
	"EPIC":      "E",
	"BOSS":      "B",
	"FULL ART":  "F",
	"LEGENDARY": "L",
}

// FoldRarity maps rarity names and letters onto the single-letter vocabulary.
func FoldRarity(r string) string {
	s := upper.String(strings.TrimSpace(r))
	if v, ok := rarityNames[s]; ok {
		return v
	}
	return s
}
