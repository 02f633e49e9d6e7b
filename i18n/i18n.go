package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"
)

//go:embed locales/*.json
var locales embed.FS

var (
	mu           sync.RWMutex
	translations = make(map[string]map[string]string)
)

var DefaultLang = "en"

var Languages = []string{"en", "fr"}

func init() {
	if err := LoadTranslations(locales, "locales"); err != nil {
		panic(err)
	}
}

// LoadTranslations reads <dir>/<lang>.json for every supported language
// from fsys, replacing the current catalogs.
func LoadTranslations(fsys fs.FS, dir string) error {
	loaded := make(map[string]map[string]string, len(Languages))
	for _, lang := range Languages {
		data, err := fs.ReadFile(fsys, fmt.Sprintf("%s/%s.json", dir, lang))
		if err != nil {
			return err
		}
		var t map[string]string
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("%s catalog: %w", lang, err)
		}
		loaded[lang] = t
	}

	mu.Lock()
	translations = loaded
	mu.Unlock()
	return nil
}

func T(lang, key string) string {
	mu.RLock()
	t, ok := translations[lang]
	var val string
	if ok {
		val, ok = t[key]
	}
	mu.RUnlock()
	if ok {
		return val
	}
	// Fallback to English
	if lang != DefaultLang {
		return T(DefaultLang, key)
	}
	return key
}

func supported(lang string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := translations[lang]
	return ok
}

func DetectLanguage(r *http.Request) string {
	accept := r.Header.Get("Accept-Language")
	if accept != "" {
		// Example: fr-CH, fr;q=0.9, en;q=0.8, de;q=0.7, *;q=0.5
		for _, part := range strings.Split(accept, ",") {
			lang := strings.ToLower(strings.TrimSpace(strings.Split(part, ";")[0]))
			if len(lang) >= 2 {
				lang = lang[:2] // e.g., "en-US" -> "en"
				if supported(lang) {
					return lang
				}
			}
		}
	}

	return DefaultLang
}
