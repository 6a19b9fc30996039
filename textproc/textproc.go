// Package textproc implements the English→Turkish text transforms applied
// around remote translation: placeholder tagging and contraction expansion
// on the source side, placeholder resolution and Turkish casing, spacing and
// duplicate-word fixes on the target side.
//
// Every transform is pure and total: empty or whitespace-only input is
// returned unchanged.
package textproc

import (
	"regexp"
	"strings"

	"dubber/dictionary"
)

// Placeholder kinds embedded in [[KIND:key]] tokens.
const (
	KindIdiom   = "IDIOM"
	KindPhrasal = "PHRASAL"
)

// placeholderRe tolerates the spacing and case changes remote translators
// introduce, e.g. "[ [idiom: piece of cake] ]".
var placeholderRe = regexp.MustCompile(`(?i)\[\s*\[\s*(idiom|phrasal)\s*:\s*([^\[\]]+?)\s*\]\s*\]`)

// Pipeline runs the pre- and post-translation transforms.
type Pipeline struct {
	idioms  *dictionary.IdiomTable
	phrasal *dictionary.IdiomTable
}

// New returns a pipeline over the given tables. Either may be nil.
func New(idioms, phrasal *dictionary.IdiomTable) *Pipeline {
	return &Pipeline{idioms: idioms, phrasal: phrasal}
}

// Default returns a pipeline over the built-in idiom and phrasal-verb tables.
func Default() *Pipeline {
	return New(dictionary.DefaultIdioms(), dictionary.DefaultPhrasalVerbs())
}

// Idioms returns the idiom table.
func (p *Pipeline) Idioms() *dictionary.IdiomTable { return p.idioms }

// PreProcess tags idioms, expands contractions and tags phrasal verbs.
func (p *Pipeline) PreProcess(text string) string {
	if isBlank(text) {
		return text
	}
	text = p.TagIdioms(text)
	text = ExpandContractions(text)
	return p.TagPhrasalVerbs(text)
}

// PostProcess resolves placeholders, then fixes letter case, capitalization,
// spacing and duplicated words.
func (p *Pipeline) PostProcess(text string) string {
	if isBlank(text) {
		return text
	}
	text = p.ResolvePlaceholders(text)
	text = FixLetterCase(text)
	text = Capitalize(text)
	text = NormalizeSpacing(text)
	return DedupeWords(text)
}

// TagIdioms replaces known idioms with [[IDIOM:key]] placeholders.
func (p *Pipeline) TagIdioms(text string) string {
	if isBlank(text) {
		return text
	}
	return p.idioms.ReplaceFunc(text, func(i dictionary.Idiom) string {
		return Placeholder(KindIdiom, i.Key)
	})
}

// TagPhrasalVerbs replaces known phrasal verbs with [[PHRASAL:key]] placeholders.
func (p *Pipeline) TagPhrasalVerbs(text string) string {
	if isBlank(text) {
		return text
	}
	return p.phrasal.ReplaceFunc(text, func(i dictionary.Idiom) string {
		return Placeholder(KindPhrasal, i.Key)
	})
}

// ResolvePlaceholders swaps placeholders for their Turkish text. An unknown
// key resolves to its phrase form so no text is dropped.
func (p *Pipeline) ResolvePlaceholders(text string) string {
	if isBlank(text) || !strings.Contains(text, "[") {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		m := placeholderRe.FindStringSubmatch(match)
		kind, key := strings.ToUpper(m[1]), m[2]

		table := p.idioms
		if kind == KindPhrasal {
			table = p.phrasal
		}
		if entry, ok := table.Lookup(key); ok {
			return entry.Target
		}
		return strings.ReplaceAll(dictionary.NormalizeKey(key), "_", " ")
	})
}

// Placeholder formats a placeholder token.
func Placeholder(kind, key string) string {
	return "[[" + kind + ":" + key + "]]"
}

// HasPlaceholders reports whether text contains a placeholder token.
func HasPlaceholders(text string) bool {
	return placeholderRe.MatchString(text)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
