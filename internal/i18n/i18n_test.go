package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestInitOverride(t *testing.T) {
	t.Setenv("XAPK_LANG", "zh_CN.UTF-8")

	require.NoError(t, Init("en"))
	assert.Equal(t, language.English, CurrentLanguage())

	require.NoError(t, Init(""))
	assert.Equal(t, language.Chinese, CurrentLanguage())
}

func TestSelectLanguage(t *testing.T) {
	for _, key := range []string{"XAPK_LANG", "LC_ALL", "LC_MESSAGES"} {
		t.Setenv(key, "")
	}

	t.Setenv("LANG", "en_US.UTF-8")
	base, _ := selectLanguage("").Base()
	assert.Equal(t, "en", base.String())

	t.Setenv("LANG", "zh_TW.UTF-8")
	assert.Equal(t, language.Chinese, selectLanguage(""))

	assert.Equal(t, language.Chinese, selectLanguage("zh"))
}

func TestTranslateStatus(t *testing.T) {
	require.NoError(t, Init("en"))

	msg := T("status.placement-failed", map[string]interface{}{
		"Archive":    "game.xapk",
		"Failed":     1,
		"Assets":     2,
		"Identifier": "com.example.game",
	})
	assert.Equal(t, "game.xapk: 1 of 2 OBB files could not be placed for com.example.game", msg)

	require.NoError(t, Init("zh"))
	assert.Equal(t, "game.xapk：压缩包中没有 APK", T("status.no-package-found", map[string]interface{}{"Archive": "game.xapk"}))
}

func TestTranslateUnknownID(t *testing.T) {
	require.NoError(t, Init("en"))
	assert.Equal(t, "no.such.message", T("no.such.message"))
}

func TestLocalesHaveSameKeys(t *testing.T) {
	require.NoError(t, Init("en"))

	for _, id := range []string{
		"status.pending", "status.done", "status.done-not-installed", "status.done-dry-run", "status.failed",
		"status.no-package-found", "status.identifier-unresolved", "status.placement-failed",
		"cmd.root.short", "cmd.install.short", "cmd.inspect.short", "cmd.place.short",
		"cmd.config.short", "cmd.doctor.short", "cmd.version.short", "flags.output",
	} {
		require.NoError(t, Init("en"))
		en := T(id)
		require.NoError(t, Init("zh"))
		zh := T(id)

		assert.NotEqual(t, id, en, "missing English message %s", id)
		assert.NotEqual(t, id, zh, "missing Chinese message %s", id)
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := map[string]string{
		"zh_CN.UTF-8": "zh-CN",
		"en_US@euro":  "en-US",
		" de_DE ":     "de-DE",
		"C":           "",
		"POSIX":       "",
		"C.UTF-8":     "",
		"zh-Hans":     "zh-Hans",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeLocale(in), in)
	}
}

func TestSelectLanguage_FirstSupportedWins(t *testing.T) {
	t.Setenv("XAPK_LANG", "")
	t.Setenv("LC_ALL", "fr_FR.UTF-8")
	t.Setenv("LC_MESSAGES", "zh_CN.UTF-8")
	t.Setenv("LANG", "en_US.UTF-8")

	assert.Equal(t, language.Chinese, selectLanguage(""))
	assert.Equal(t, language.English, selectLanguage("fr"), "unsupported override falls back to English")
}
