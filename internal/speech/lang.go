package speech

import "strings"

// bcp47 widens a bare ISO-639 code to the regioned tag most endpoints
// expect. Full tags pass through untouched; empty input yields fallback.
func bcp47(language, fallback string) string {
	if language == "" {
		return fallback
	}
	if strings.ContainsAny(language, "-_") {
		return language
	}
	switch strings.ToLower(language) {
	case "en":
		return "en-US"
	case "zh":
		return "zh-CN"
	case "es":
		return "es-ES"
	case "fr":
		return "fr-FR"
	case "de":
		return "de-DE"
	case "it":
		return "it-IT"
	case "ja":
		return "ja-JP"
	case "ko":
		return "ko-KR"
	case "pt":
		return "pt-BR"
	case "ru":
		return "ru-RU"
	default:
		return language
	}
}
