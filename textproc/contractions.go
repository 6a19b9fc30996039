package textproc

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Expansion is one-way: "it's" always becomes "it is", so the original
// contraction cannot be recovered.
var contractions = map[string]string{
	"don't":     "do not",
	"doesn't":   "does not",
	"didn't":    "did not",
	"can't":     "cannot",
	"couldn't":  "could not",
	"won't":     "will not",
	"wouldn't":  "would not",
	"shouldn't": "should not",
	"isn't":     "is not",
	"aren't":    "are not",
	"wasn't":    "was not",
	"weren't":   "were not",
	"haven't":   "have not",
	"hasn't":    "has not",
	"hadn't":    "had not",
	"mustn't":   "must not",
	"i'm":       "i am",
	"you're":    "you are",
	"we're":     "we are",
	"they're":   "they are",
	"he's":      "he is",
	"she's":     "she is",
	"it's":      "it is",
	"that's":    "that is",
	"there's":   "there is",
	"what's":    "what is",
	"where's":   "where is",
	"who's":     "who is",
	"let's":     "let us",
	"i've":      "i have",
	"you've":    "you have",
	"we've":     "we have",
	"they've":   "they have",
	"i'll":      "i will",
	"you'll":    "you will",
	"he'll":     "he will",
	"she'll":    "she will",
	"we'll":     "we will",
	"they'll":   "they will",
	"it'll":     "it will",
	"i'd":       "i would",
	"you'd":     "you would",
	"we'd":      "we would",
	"they'd":    "they would",
	"y'all":     "you all",
	"gonna":     "going to",
	"wanna":     "want to",
	"gotta":     "got to",
}

var contractionRe = buildContractionRe()

func buildContractionRe() *regexp.Regexp {
	keys := make([]string, 0, len(contractions))
	for k := range contractions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for i, k := range keys {
		keys[i] = strings.ReplaceAll(regexp.QuoteMeta(k), "'", "['’]")
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(keys, "|") + `)\b`)
}

// ExpandContractions expands common English contractions, keeping the
// match's leading capital ("Don't" → "Do not") and the pronoun "I".
func ExpandContractions(text string) string {
	if isBlank(text) {
		return text
	}
	return contractionRe.ReplaceAllStringFunc(text, func(match string) string {
		key := strings.ToLower(strings.ReplaceAll(match, "’", "'"))
		expanded, ok := contractions[key]
		if !ok {
			return match
		}
		return matchCase(match, expanded)
	})
}

func matchCase(match, expanded string) string {
	if strings.HasPrefix(expanded, "i ") {
		expanded = "I" + expanded[1:]
	}
	if isAllUpper(match) && utf8.RuneCountInString(match) > 1 {
		return strings.ToUpper(expanded)
	}
	if first, _ := utf8.DecodeRuneInString(match); unicode.IsUpper(first) {
		r, n := utf8.DecodeRuneInString(expanded)
		return string(unicode.ToUpper(r)) + expanded[n:]
	}
	return expanded
}

// isAllUpper reports whether s has at least one letter and no lower-case letters.
func isAllUpper(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters > 0
}
