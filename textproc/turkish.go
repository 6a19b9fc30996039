package textproc

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const combiningDot = '\u0307'

var properNouns = map[string]string{
	"istanbul":   "İstanbul",
	"ankara":     "Ankara",
	"izmir":      "İzmir",
	"antalya":    "Antalya",
	"bursa":      "Bursa",
	"türkiye":    "Türkiye",
	"türkçe":     "Türkçe",
	"ingilizce":  "İngilizce",
	"almanca":    "Almanca",
	"fransızca":  "Fransızca",
	"ispanyolca": "İspanyolca",
	"ingiltere":  "İngiltere",
	"almanya":    "Almanya",
	"fransa":     "Fransa",
	"avrupa":     "Avrupa",
	"amerika":    "Amerika",
	"atatürk":    "Atatürk",
	"youtube":    "YouTube",
	"google":     "Google",
}

// FixLetterCase repairs dotted/dotless I damage from non-Turkish case
// mapping. The U+0307 left after "i" is dropped; inside damaged words an
// interior "I" becomes "ı" and an interior "İ" becomes "i". Fully upper-case
// words are left alone, as are capitalized words without Turkish letters,
// so Latin names like "McIntosh" survive.
func FixLetterCase(text string) string {
	if isBlank(text) {
		return text
	}
	text = stripCombiningDot(text)
	return mapWords(text, func(word string) string {
		if isAllUpper(word) {
			return word
		}
		if first, _ := utf8.DecodeRuneInString(word); unicode.IsUpper(first) && !hasTurkishLetter(word) {
			return word
		}
		runes := []rune(word)
		changed := false
		for i := 1; i < len(runes); i++ {
			switch runes[i] {
			case 'I':
				runes[i] = 'ı'
				changed = true
			case 'İ':
				runes[i] = 'i'
				changed = true
			}
		}
		if !changed {
			return word
		}
		return string(runes)
	})
}

func hasTurkishLetter(word string) bool {
	return strings.ContainsAny(word, "çÇğĞıİöÖşŞüÜ")
}

func stripCombiningDot(text string) string {
	if !strings.ContainsRune(text, combiningDot) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	var prev rune
	for _, r := range text {
		if r == combiningDot && (prev == 'i' || prev == 'I') {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// Capitalize upper-cases the first letter of each sentence with Turkish
// casing ("i" → "İ") and restores known proper nouns.
func Capitalize(text string) string {
	if isBlank(text) {
		return text
	}
	text = mapWords(text, func(word string) string {
		if proper, ok := properNouns[word]; ok {
			return proper
		}
		return word
	})

	runes := []rune(text)
	capNext := true
	sentenceEnd := false
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r):
			if capNext {
				runes[i] = unicode.TurkishCase.ToUpper(r)
			}
			capNext, sentenceEnd = false, false
		case r == '.' || r == '!' || r == '?' || r == '…':
			sentenceEnd = true
		case unicode.IsSpace(r):
			if sentenceEnd {
				capNext = true
			}
		case unicode.IsDigit(r):
			capNext, sentenceEnd = false, false
		default:
			sentenceEnd = false
		}
	}
	return string(runes)
}

// mapWords calls fn for every maximal run of letters and combining marks.
func mapWords(text string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(text))
	start := -1
	for i, r := range text {
		inWord := isLetterOrMark(r)
		switch {
		case inWord && start < 0:
			start = i
		case !inWord && start >= 0:
			b.WriteString(fn(text[start:i]))
			start = -1
		}
		if !inWord {
			b.WriteRune(r)
		}
	}
	if start >= 0 {
		b.WriteString(fn(text[start:]))
	}
	return b.String()
}

func turkishLower(s string) string {
	return strings.ToLowerSpecial(unicode.TurkishCase, s)
}

func isLetterOrMark(r rune) bool {
	return unicode.IsLetter(r) || unicode.Is(unicode.Mn, r)
}
