package dictionary

import (
	"regexp"
	"sort"
	"strings"
)

// Idiom maps an English phrase to its Turkish rendering. Key is the stable
// identifier embedded in placeholders.
type Idiom struct {
	Key    string
	Source string
	Target string
}

// IdiomTable matches idioms case-insensitively as whole phrases on word
// boundaries, longest source first.
type IdiomTable struct {
	byKey   map[string]Idiom
	ordered []Idiom
	re      *regexp.Regexp
	index   map[string]Idiom
}

// NewIdiomTable builds a table. Entries with an empty key or source are
// skipped; a later duplicate key replaces an earlier one.
func NewIdiomTable(idioms []Idiom) *IdiomTable {
	t := &IdiomTable{
		byKey: make(map[string]Idiom, len(idioms)),
		index: make(map[string]Idiom, len(idioms)),
	}
	for _, idiom := range idioms {
		idiom.Key = NormalizeKey(idiom.Key)
		idiom.Source = strings.TrimSpace(idiom.Source)
		if idiom.Key == "" || idiom.Source == "" {
			continue
		}
		t.byKey[idiom.Key] = idiom
	}
	for _, idiom := range t.byKey {
		t.ordered = append(t.ordered, idiom)
		t.index[foldApostrophes(strings.ToLower(idiom.Source))] = idiom
	}
	sort.Slice(t.ordered, func(i, j int) bool {
		li, lj := len(t.ordered[i].Source), len(t.ordered[j].Source)
		if li != lj {
			return li > lj
		}
		return t.ordered[i].Key < t.ordered[j].Key
	})

	if len(t.ordered) > 0 {
		alts := make([]string, len(t.ordered))
		for i, idiom := range t.ordered {
			alts[i] = phrasePattern(idiom.Source)
		}
		t.re = regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	}
	return t
}

// Lookup returns the idiom for key. Keys are compared after NormalizeKey.
func (t *IdiomTable) Lookup(key string) (Idiom, bool) {
	if t == nil {
		return Idiom{}, false
	}
	idiom, ok := t.byKey[NormalizeKey(key)]
	return idiom, ok
}

// All returns the entries, longest source first.
func (t *IdiomTable) All() []Idiom {
	if t == nil {
		return nil
	}
	out := make([]Idiom, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Len returns the number of entries.
func (t *IdiomTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ordered)
}

// ReplaceFunc replaces every idiom occurrence in text with repl(idiom).
func (t *IdiomTable) ReplaceFunc(text string, repl func(Idiom) string) string {
	if t == nil || t.re == nil || strings.TrimSpace(text) == "" {
		return text
	}
	return t.re.ReplaceAllStringFunc(text, func(match string) string {
		idiom, ok := t.index[foldApostrophes(strings.ToLower(match))]
		if !ok {
			return match
		}
		return repl(idiom)
	})
}

// Substitute replaces idiom occurrences with their Turkish targets.
func (t *IdiomTable) Substitute(text string) string {
	return t.ReplaceFunc(text, func(idiom Idiom) string { return idiom.Target })
}

// NormalizeKey lower-cases key and joins its words with underscores, so keys
// survive a remote translator that turned underscores into spaces.
func NormalizeKey(key string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(key, "_", " "))), "_")
}

// phrasePattern quotes source, accepting either apostrophe form and any run
// of whitespace between words.
func phrasePattern(source string) string {
	words := strings.Fields(source)
	for i, w := range words {
		w = regexp.QuoteMeta(foldApostrophes(w))
		words[i] = strings.ReplaceAll(w, "'", "['’]")
	}
	return strings.Join(words, `\s+`)
}

func foldApostrophes(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	return strings.Join(strings.Fields(s), " ")
}

// DefaultIdioms returns the built-in English→Turkish idiom table.
func DefaultIdioms() *IdiomTable {
	return NewIdiomTable(defaultIdioms)
}

// DefaultPhrasalVerbs returns the built-in phrasal-verb table. Targets are
// verb stems so they read naturally in imperative and infinitive positions.
func DefaultPhrasalVerbs() *IdiomTable {
	return NewIdiomTable(defaultPhrasalVerbs)
}

var defaultIdioms = []Idiom{
	{Key: "its_raining_cats_and_dogs", Source: "it's raining cats and dogs", Target: "bardaktan boşanırcasına yağmur yağıyor"},
	{Key: "raining_cats_and_dogs", Source: "raining cats and dogs", Target: "bardaktan boşanırcasına yağmur yağıyor"},
	{Key: "piece_of_cake", Source: "piece of cake", Target: "çocuk oyuncağı"},
	{Key: "break_the_ice", Source: "break the ice", Target: "buzları eritmek"},
	{Key: "under_the_weather", Source: "under the weather", Target: "keyifsiz"},
	{Key: "once_in_a_blue_moon", Source: "once in a blue moon", Target: "kırk yılda bir"},
	{Key: "hit_the_nail_on_the_head", Source: "hit the nail on the head", Target: "tam üstüne basmak"},
	{Key: "cost_an_arm_and_a_leg", Source: "cost an arm and a leg", Target: "dudak uçuklatan bir fiyata mal olmak"},
	{Key: "let_the_cat_out_of_the_bag", Source: "let the cat out of the bag", Target: "baklayı ağzından çıkarmak"},
	{Key: "spill_the_beans", Source: "spill the beans", Target: "ağzındaki baklayı çıkarmak"},
	{Key: "the_ball_is_in_your_court", Source: "the ball is in your court", Target: "top sende"},
	{Key: "better_late_than_never", Source: "better late than never", Target: "geç olsun güç olmasın"},
	{Key: "bite_the_bullet", Source: "bite the bullet", Target: "dişini sıkmak"},
	{Key: "kill_two_birds_with_one_stone", Source: "kill two birds with one stone", Target: "bir taşla iki kuş vurmak"},
	{Key: "when_pigs_fly", Source: "when pigs fly", Target: "balık kavağa çıkınca"},
	{Key: "break_a_leg", Source: "break a leg", Target: "bol şans"},
	{Key: "a_blessing_in_disguise", Source: "a blessing in disguise", Target: "her işte bir hayır vardır"},
	{Key: "call_it_a_day", Source: "call it a day", Target: "paydos etmek"},
	{Key: "on_the_same_page", Source: "on the same page", Target: "aynı fikirde"},
	{Key: "no_pain_no_gain", Source: "no pain, no gain", Target: "emek olmadan yemek olmaz"},
	{Key: "speak_of_the_devil", Source: "speak of the devil", Target: "iti an çomağı hazırla"},
	{Key: "the_early_bird_catches_the_worm", Source: "the early bird catches the worm", Target: "erken kalkan yol alır"},
	{Key: "actions_speak_louder_than_words", Source: "actions speak louder than words", Target: "söz uçar, yazı kalır"},
	{Key: "easier_said_than_done", Source: "easier said than done", Target: "söylemesi kolay"},
	{Key: "in_the_same_boat", Source: "in the same boat", Target: "aynı gemide"},
}

var defaultPhrasalVerbs = []Idiom{
	{Key: "give_up", Source: "give up", Target: "vazgeç"},
	{Key: "find_out", Source: "find out", Target: "öğren"},
	{Key: "figure_out", Source: "figure out", Target: "çöz"},
	{Key: "look_forward_to", Source: "look forward to", Target: "dört gözle bekle"},
	{Key: "carry_on", Source: "carry on", Target: "devam et"},
	{Key: "put_off", Source: "put off", Target: "ertele"},
	{Key: "turn_down", Source: "turn down", Target: "reddet"},
	{Key: "run_out_of", Source: "run out of", Target: "tüket"},
	{Key: "get_along_with", Source: "get along with", Target: "iyi geçin"},
	{Key: "look_after", Source: "look after", Target: "bak"},
	{Key: "set_up", Source: "set up", Target: "kur"},
	{Key: "come_up_with", Source: "come up with", Target: "bul"},
	{Key: "point_out", Source: "point out", Target: "belirt"},
	{Key: "take_off", Source: "take off", Target: "havalan"},
	{Key: "show_up", Source: "show up", Target: "ortaya çık"},
}
