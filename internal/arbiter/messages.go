package arbiter

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultMessages []byte

// Rand picks message variants. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type Message struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type localeMessages struct {
	Fallback   Message                `yaml:"fallback"`
	Reasons    map[string]string      `yaml:"reasons"`
	Categories map[Category][]Message `yaml:"categories"`
}

// Catalog holds the localized nudge texts.
type Catalog struct {
	locales map[string]localeMessages
}

// LoadCatalog parses a YAML message catalog keyed by language. An "en"
// section is required and is used for any language the catalog lacks.
func LoadCatalog(data []byte) (*Catalog, error) {
	var locales map[string]localeMessages
	if err := yaml.Unmarshal(data, &locales); err != nil {
		return nil, fmt.Errorf("failed to parse message catalog: %w", err)
	}
	if _, ok := locales["en"]; !ok {
		return nil, fmt.Errorf("message catalog has no \"en\" section")
	}
	return &Catalog{locales: locales}, nil
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultMessages)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) lookup(locale string) localeMessages {
	lang := strings.ToLower(locale)
	if i := strings.IndexAny(lang, "-_."); i > 0 {
		lang = lang[:i]
	}
	if m, ok := c.locales[lang]; ok {
		return m
	}
	return c.locales["en"]
}

// Message picks a random variant for the category, falling back to the
// generic message when the category has none.
func (c *Catalog) Message(locale string, cat Category, r Rand) Message {
	m := c.lookup(locale)
	variants := m.Categories[cat]
	if len(variants) == 0 {
		variants = c.locales["en"].Categories[cat]
	}
	if len(variants) == 0 {
		return m.Fallback
	}
	msg := variants[r.IntN(len(variants))]
	if msg.Title == "" {
		msg.Title = m.Fallback.Title
	}
	if msg.Body == "" {
		msg.Body = m.Fallback.Body
	}
	return msg
}

// Reason returns a localized reason string, or key when none is defined.
func (c *Catalog) Reason(locale, key string) string {
	if r, ok := c.lookup(locale).Reasons[key]; ok {
		return r
	}
	if r, ok := c.locales["en"].Reasons[key]; ok {
		return r
	}
	return key
}
