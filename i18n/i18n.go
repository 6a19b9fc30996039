// Package i18n provides dubber's message catalogs: the localized offline
// marker appended to untranslated text and the CLI's user-facing strings.
//
// Catalogs are gettext .po files embedded in the binary under
// locales/{lang}/LC_MESSAGES/dubber.po and loaded with gotext.
package i18n

import (
	"embed"
	"os"
	"strings"
	"sync"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "dubber"

// MsgOfflineMarker is the msgid of the marker appended to text that could
// not be translated while offline.
const MsgOfflineMarker = "[translation unavailable - offline]"

// Catalog lazily loads one gotext locale per language. Safe for concurrent use.
type Catalog struct {
	mu      sync.Mutex
	locales map[string]*gotext.Locale
}

// NewCatalog returns an empty catalog backed by the embedded .po files.
func NewCatalog() *Catalog {
	return &Catalog{locales: make(map[string]*gotext.Locale)}
}

// Get translates msgid into lang, formatting args when given. Unknown
// languages and msgids fall back to msgid.
func (c *Catalog) Get(lang, msgid string, args ...any) string {
	if c == nil {
		return gotext.FormatString(msgid, args...)
	}
	return c.locale(PrimaryTag(lang)).Get(msgid, args...)
}

// OfflineMarker returns the offline marker in lang.
func (c *Catalog) OfflineMarker(lang string) string {
	return c.Get(lang, MsgOfflineMarker)
}

func (c *Catalog) locale(lang string) *gotext.Locale {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.locales[lang]; ok {
		return l
	}
	l := gotext.NewLocaleFSWithPath(lang, locales, "locales")
	l.AddDomain(domain)
	l.SetDomain(domain)
	c.locales[lang] = l
	return l
}

// PrimaryTag reduces a language tag to its lower-case primary subtag:
// "en-US" → "en", "pt_BR.UTF-8" → "pt".
func PrimaryTag(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_.@"); i >= 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

var (
	std    = NewCatalog()
	uiLang = "en"
)

// Init selects the CLI language. An empty lang is detected from LANGUAGE,
// LC_ALL, LC_MESSAGES and LANG, in that order.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	uiLang = PrimaryTag(lang)
}

// T translates a CLI message into the language chosen by Init.
func T(msgid string, args ...any) string {
	return std.Get(uiLang, msgid, args...)
}

// detectLanguage follows GNU gettext's environment precedence.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		if idx := strings.IndexByte(val, '.'); idx >= 0 {
			val = val[:idx]
		}
		if val == "C" || val == "POSIX" || val == "" {
			continue
		}
		return val
	}
	return "en"
}
