package audio

import "strings"

// locales maps human language names to BCP 47 tags for the speech engines.
// Both the remote and local paths resolve through this one table.
var locales = map[string]string{
	"english":        "en-US",
	"spanish":        "es-ES",
	"french":         "fr-FR",
	"german":         "de-DE",
	"italian":        "it-IT",
	"portuguese":     "pt-PT",
	"mandarin":       "zh-CN",
	"chinese":        "zh-CN",
	"cantonese":      "zh-HK",
	"japanese":       "ja-JP",
	"korean":         "ko-KR",
	"hindi":          "hi-IN",
	"arabic":         "ar-SA",
	"russian":        "ru-RU",
	"ukrainian":      "uk-UA",
	"polish":         "pl-PL",
	"vietnamese":     "vi-VN",
	"tagalog":        "fil-PH",
	"somali":         "so-SO",
	"haitian creole": "ht-HT",
}

// Locale resolves a language name to a locale tag. Unresolved names pass
// through unchanged so the underlying engine can attempt its own match.
func Locale(language string) string {
	if tag, ok := locales[strings.ToLower(strings.TrimSpace(language))]; ok {
		return tag
	}
	return language
}
