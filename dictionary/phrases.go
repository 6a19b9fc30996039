// Package dictionary holds the static English→Turkish phrase table and the
// idiom and phrasal-verb tables used for offline fallback and placeholder
// substitution. All tables are immutable once built.
package dictionary

import "strings"

// PhraseDictionary is an exact-match phrase table keyed by lower-cased,
// trimmed source text.
type PhraseDictionary struct {
	entries map[string]string
}

// NewPhraseDictionary copies entries, normalizing keys.
func NewPhraseDictionary(entries map[string]string) *PhraseDictionary {
	d := &PhraseDictionary{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		d.entries[normalize(k)] = v
	}
	return d
}

// Lookup returns the translation for phrase. Matching is case-insensitive
// and exact after trimming; there is no partial or fuzzy matching.
func (d *PhraseDictionary) Lookup(phrase string) (string, bool) {
	if d == nil {
		return "", false
	}
	key := normalize(phrase)
	if key == "" {
		return "", false
	}
	v, ok := d.entries[key]
	return v, ok
}

// Len returns the number of entries.
func (d *PhraseDictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DefaultPhrases returns the built-in English→Turkish table.
func DefaultPhrases() *PhraseDictionary {
	return NewPhraseDictionary(defaultPhrases)
}

var defaultPhrases = map[string]string{
	// greetings
	"hello":               "merhaba",
	"hi":                  "selam",
	"good morning":        "günaydın",
	"good afternoon":      "tünaydın",
	"good evening":        "iyi akşamlar",
	"good night":          "iyi geceler",
	"goodbye":             "hoşça kal",
	"bye":                 "güle güle",
	"see you later":       "sonra görüşürüz",
	"see you tomorrow":    "yarın görüşürüz",
	"welcome":             "hoş geldiniz",
	"how are you":         "nasılsın",
	"how are you?":        "nasılsın?",
	"i'm fine":            "iyiyim",
	"i am fine":           "iyiyim",
	"thank you":           "teşekkür ederim",
	"thanks":              "teşekkürler",
	"thank you very much": "çok teşekkür ederim",
	"you're welcome":      "rica ederim",
	"please":              "lütfen",
	"sorry":               "özür dilerim",
	"excuse me":           "affedersiniz",
	"yes":                 "evet",
	"no":                  "hayır",
	"okay":                "tamam",
	"ok":                  "tamam",
	"of course":           "tabii ki",
	"nice to meet you":    "tanıştığımıza memnun oldum",
	"congratulations":     "tebrikler",
	"happy birthday":      "doğum günün kutlu olsun",
	"good luck":           "iyi şanslar",
	"i don't know":        "bilmiyorum",
	"i understand":        "anlıyorum",
	"i love you":          "seni seviyorum",
	"what is your name":   "adın ne",

	// numbers
	"zero":     "sıfır",
	"one":      "bir",
	"two":      "iki",
	"three":    "üç",
	"four":     "dört",
	"five":     "beş",
	"six":      "altı",
	"seven":    "yedi",
	"eight":    "sekiz",
	"nine":     "dokuz",
	"ten":      "on",
	"twenty":   "yirmi",
	"hundred":  "yüz",
	"thousand": "bin",
	"million":  "milyon",

	// days
	"monday":    "pazartesi",
	"tuesday":   "salı",
	"wednesday": "çarşamba",
	"thursday":  "perşembe",
	"friday":    "cuma",
	"saturday":  "cumartesi",
	"sunday":    "pazar",
	"today":     "bugün",
	"tomorrow":  "yarın",
	"yesterday": "dün",

	// pipeline terms
	"video":               "video",
	"audio":               "ses",
	"subtitle":            "altyazı",
	"subtitles":           "altyazılar",
	"translation":         "çeviri",
	"translate":           "çevir",
	"download":            "indir",
	"upload":              "yükle",
	"transcription":       "transkripsiyon",
	"voice":               "ses",
	"speaker":             "konuşmacı",
	"dubbing":             "dublaj",
	"language":            "dil",
	"settings":            "ayarlar",
	"error":               "hata",
	"loading":             "yükleniyor",
	"processing":          "işleniyor",
	"completed":           "tamamlandı",
	"cancel":              "iptal",
	"start":               "başlat",
	"stop":                "durdur",
	"save":                "kaydet",
	"open":                "aç",
	"close":               "kapat",
	"like and subscribe":  "beğenin ve abone olun",
	"thanks for watching": "izlediğiniz için teşekkürler",
}
