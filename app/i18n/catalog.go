package i18n

import (
	_ "embed"
	"fmt"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed translations.yml
var rawTranslations []byte

const fallbackLang = "en"

// Catalog is a language-indexed message catalog. Lookups run the requested
// language through a BCP 47 matcher so that e.g. "en-GB" or "zh-TW" resolve
// to the closest available translation.
type Catalog struct {
	messages map[string]map[string]string
	matcher  language.Matcher
	langs    []string
}

func Load() (*Catalog, error) {
	var messages map[string]map[string]string
	if err := yaml.Unmarshal(rawTranslations, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse translations: %w", err)
	}
	if _, ok := messages[fallbackLang]; !ok {
		return nil, fmt.Errorf("translations missing fallback language %q", fallbackLang)
	}

	// The fallback language must come first: the matcher returns the first
	// tag when nothing matches.
	langs := []string{fallbackLang}
	for lang := range messages {
		if lang != fallbackLang {
			langs = append(langs, lang)
		}
	}

	tags := make([]language.Tag, 0, len(langs))
	for _, lang := range langs {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("invalid translation language %q: %w", lang, err)
		}
		tags = append(tags, tag)
	}

	return &Catalog{
		messages: messages,
		matcher:  language.NewMatcher(tags),
		langs:    langs,
	}, nil
}

// Get returns the message for key in the closest available language.
func (c *Catalog) Get(lang, key string) string {
	resolved := fallbackLang
	if lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			_, index, _ := c.matcher.Match(tag)
			resolved = c.langs[index]
		}
	}

	if msg, ok := c.messages[resolved][key]; ok {
		return msg
	}
	return c.messages[fallbackLang][key]
}
