package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var (
	bundle          *goi18n.Bundle
	localizer       *goi18n.Localizer
	currentLanguage = language.English
)

//go:embed locales/*.toml
var localeFS embed.FS

// localeEnv lists the environment variables consulted when --lang is not
// given, highest priority first.
var localeEnv = []string{"XAPK_LANG", "LC_ALL", "LC_MESSAGES", "LANG"}

// Init loads the embedded message files and picks the interface language:
//  1. langOverride (from --lang or the lang config key)
//  2. XAPK_LANG environment variable
//  3. LC_ALL / LC_MESSAGES / LANG
//  4. Windows UI languages
//  5. English
func Init(langOverride string) error {
	b := goi18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	if err := loadMessageFiles(b); err != nil {
		return fmt.Errorf("load locales: %w", err)
	}

	bundle = b
	currentLanguage = selectLanguage(langOverride)
	localizer = goi18n.NewLocalizer(bundle, currentLanguage.String(), language.English.String())
	return nil
}

// T translates a message by ID with optional template data. Unknown IDs
// come back unchanged so output is never empty.
func T(id string, data ...map[string]interface{}) string {
	var templateData map[string]interface{}
	if len(data) > 0 {
		templateData = data[0]
	}

	if localizer == nil {
		if err := Init(""); err != nil {
			fmt.Fprintf(os.Stderr, "i18n init failed: %v\n", err)
			return id
		}
	}

	msg, err := localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:      id,
		TemplateData:   templateData,
		PluralCount:    pluralCount(templateData),
		DefaultMessage: &goi18n.Message{ID: id, Other: id},
	})
	if err != nil || msg == "" {
		return id
	}
	return msg
}

// CurrentLanguage returns the chosen language tag.
func CurrentLanguage() language.Tag {
	return currentLanguage
}

// selectLanguage returns the first candidate locale that has a message
// file. An explicit override is never mixed with the environment.
func selectLanguage(langOverride string) language.Tag {
	var candidates []string
	if langOverride = strings.TrimSpace(langOverride); langOverride != "" {
		candidates = []string{langOverride}
	} else {
		for _, key := range localeEnv {
			if val := strings.TrimSpace(os.Getenv(key)); val != "" {
				candidates = append(candidates, val)
			}
		}
		if len(candidates) == 0 {
			candidates = getPlatformLocales()
		}
	}

	for _, cand := range candidates {
		if tag, ok := supported(normalizeLocale(cand)); ok {
			return tag
		}
	}
	return language.English
}

// normalizeLocale turns POSIX locale names like zh_CN.UTF-8@latin into
// BCP 47 form (zh-CN). "C" and "POSIX" carry no language and become "".
func normalizeLocale(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "C" || s == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(s, "_", "-")
}

// supported maps a locale onto one of the shipped message files. Only
// simplified Chinese is shipped, so every zh variant uses it.
func supported(locale string) (language.Tag, bool) {
	if locale == "" {
		return language.Und, false
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.Und, false
	}
	switch base, _ := tag.Base(); base.String() {
	case "zh":
		return language.Chinese, true
	case "en":
		return language.English, true
	default:
		return language.Und, false
	}
}

// loadMessageFiles registers every locales/*.toml file in the binary.
func loadMessageFiles(b *goi18n.Bundle) error {
	files, err := fs.Glob(localeFS, "locales/*.toml")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no message files embedded")
	}

	for _, file := range files {
		if _, err := b.LoadMessageFileFS(localeFS, file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func pluralCount(data map[string]interface{}) interface{} {
	for _, key := range []string{"count", "Count"} {
		if val, ok := data[key]; ok {
			return val
		}
	}
	return nil
}
