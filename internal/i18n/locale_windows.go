//go:build windows

package i18n

import "golang.org/x/sys/windows"

// getPlatformLocales returns the user's preferred UI languages followed by
// the default locale name, without duplicates.
func getPlatformLocales() []string {
	var names []string
	if langs, err := windows.GetUserPreferredUILanguages(windows.MUI_LANGUAGE_NAME); err == nil {
		names = append(names, langs...)
	}
	if name, err := windows.GetUserDefaultLocaleName(); err == nil {
		names = append(names, name)
	}

	seen := make(map[string]bool, len(names))
	locales := names[:0]
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		locales = append(locales, n)
	}
	return locales
}
