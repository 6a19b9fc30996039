package textproc

import (
	"regexp"
	"strings"
)

var (
	horizontalSpaceRe  = regexp.MustCompile(`[ \t\p{Zs}]+`)
	spaceBeforePunctRe = regexp.MustCompile(`[ \t]+([.,;:!?…)\]»])`)
	spaceAfterOpenRe   = regexp.MustCompile(`([(\[«])[ \t]+`)
	// "İstanbul 'da" → "İstanbul'da"
	detachedSuffixRe = regexp.MustCompile(`(\p{L})[ \t]*(['’])[ \t]+(\p{L})|(\p{L})[ \t]+(['’])(\p{L})`)
	missingSpaceRe   = regexp.MustCompile(`([.!?…,;])(\p{Lu})`)
)

// NormalizeSpacing collapses runs of horizontal whitespace, removes stray
// spaces before punctuation and attached suffixes, puts a single space after
// sentence punctuation and trims the ends.
func NormalizeSpacing(text string) string {
	if isBlank(text) {
		return text
	}
	text = horizontalSpaceRe.ReplaceAllString(text, " ")
	text = spaceBeforePunctRe.ReplaceAllString(text, "$1")
	text = spaceAfterOpenRe.ReplaceAllString(text, "$1")
	text = detachedSuffixRe.ReplaceAllString(text, "$1$2$3$4$5$6")
	text = missingSpaceRe.ReplaceAllString(text, "$1 $2")
	return strings.TrimSpace(text)
}

// Known Turkish reduplications that must survive DedupeWords.
var reduplications = map[string]bool{
	"yavaş":  true,
	"güzel":  true,
	"ağır":   true,
	"tek":    true,
	"sık":    true,
	"çabuk":  true,
	"koşa":   true,
	"bile":   true,
	"usul":   true,
	"azar":   true,
	"damla":  true,
	"ara":    true,
	"kat":    true,
	"sıra":   true,
	"derin":  true,
	"uzun":   true,
	"yan":    true,
	"iki":    true,
	"bir":    true,
	"ikişer": true,
	"birer":  true,
	"döne":   true,
	"gide":   true,
	"güle":   true,
	"bol":    true,
	"çok":    true,
}

// DedupeWords removes an immediately repeated word ("bu bu" → "bu"),
// comparing case-insensitively. Turkish reduplications are kept.
func DedupeWords(text string) string {
	if isBlank(text) {
		return text
	}
	tokens := strings.Split(text, " ")
	out := tokens[:0]
	for _, tok := range tokens {
		if n := len(out); n > 0 && isDuplicate(out[n-1], tok) {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

func isDuplicate(prev, cur string) bool {
	if cur == "" || prev == "" || !isWordToken(cur) {
		return false
	}
	lower := turkishLower(cur)
	if turkishLower(prev) != lower {
		return false
	}
	return !reduplications[lower]
}

func isWordToken(s string) bool {
	for _, r := range s {
		if !(r == '\'' || r == '’' || r == '-' || isLetterOrMark(r)) {
			return false
		}
	}
	return true
}
