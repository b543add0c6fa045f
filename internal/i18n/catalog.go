// Package i18n holds the localized texts sent to applicants and moderators.
//
// A Catalog is built once at startup and never modified afterwards, so it can
// be shared by every component without locking.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the fallback for unsupported locales and missing keys.
const BaseLocale = "en"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog is an immutable set of message templates per locale.
type Catalog struct {
	tags     []language.Tag
	matcher  language.Matcher
	messages map[language.Tag]map[string]string
}

// Load reads the catalogs embedded in the binary.
func Load() (*Catalog, error) {
	return LoadFS(embeddedLocales)
}

// LoadFS reads locales/*.yaml from fsys. The base locale must be present.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	base := language.MustParse(BaseLocale)
	messages := make(map[language.Tag]map[string]string, len(paths))
	tags := []language.Tag{base}

	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}

		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}

		name := strings.TrimSuffix(path.Base(p), path.Ext(p))
		if file.Locale != name {
			return nil, fmt.Errorf("catalog %s: locale %q must match file name %q", p, file.Locale, name)
		}
		tag, err := language.Parse(file.Locale)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: parse locale: %w", p, err)
		}
		if len(file.Messages) == 0 {
			return nil, fmt.Errorf("catalog %s: messages map is required", p)
		}
		if _, exists := messages[tag]; exists {
			return nil, fmt.Errorf("catalog %s: locale %q defined twice", p, tag)
		}

		messages[tag] = file.Messages
		if tag != base {
			tags = append(tags, tag)
		}
	}

	if _, ok := messages[base]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	return &Catalog{
		tags:     tags,
		matcher:  language.NewMatcher(tags),
		messages: messages,
	}, nil
}

// Locales returns the supported locales, base locale first.
func (c *Catalog) Locales() []string {
	out := make([]string, len(c.tags))
	for i, tag := range c.tags {
		out[i] = tag.String()
	}
	return out
}

// Keys returns the sorted message keys of the base locale.
func (c *Catalog) Keys() []string {
	base := c.messages[c.tags[0]]
	keys := make([]string, 0, len(base))
	for key := range base {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Match returns the supported locale closest to locale. Empty or malformed
// locales resolve to the base locale.
func (c *Catalog) Match(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return c.tags[0]
	}
	_, index, confidence := c.matcher.Match(tag)
	if confidence == language.No {
		return c.tags[0]
	}
	return c.tags[index]
}

// Has reports whether the matched locale defines key itself, without base fallback.
func (c *Catalog) Has(locale, key string) bool {
	_, ok := c.messages[c.Match(locale)][key]
	return ok
}

// Text renders key for locale. args are name/value pairs substituted for
// {name} placeholders. Missing keys fall back to the base locale, then to
// the key itself.
func (c *Catalog) Text(locale, key string, args ...string) string {
	msg, ok := c.messages[c.Match(locale)][key]
	if !ok {
		msg, ok = c.messages[c.tags[0]][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}

	pairs := make([]string, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, "{"+args[i]+"}", args[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}
