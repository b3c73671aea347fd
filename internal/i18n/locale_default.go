//go:build !windows

package i18n

// getPlatformLocales is only consulted when no locale variable is set.
// Unix-like systems have no other source, so English is used.
func getPlatformLocales() []string {
	return nil
}
