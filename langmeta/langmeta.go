// Package langmeta provides language metadata (native and English names,
// emoji flags) used to fill prompt placeholders and to label CLI output.
package langmeta

import "strings"

// Meta describes language display metadata.
type Meta struct {
	// Name is the language's own name for itself.
	Name    string
	// English is the English name, used in prompts sent to the model.
	English string
	Flag    string
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"af":    {Name: "Afrikaans", English: "Afrikaans", Flag: "🇿🇦"},
	"am":    {Name: "አማርኛ", English: "Amharic", Flag: "🇪🇹"},
	"ar":    {Name: "العربية", English: "Arabic", Flag: "🇸🇦"},
	"ar-EG": {Name: "العربية (مصر)", English: "Arabic (Egypt)", Flag: "🇪🇬"},
	"az":    {Name: "Azərbaycanca", English: "Azerbaijani", Flag: "🇦🇿"},
	"be":    {Name: "Беларуская", English: "Belarusian", Flag: "🇧🇾"},
	"bg":    {Name: "Български", English: "Bulgarian", Flag: "🇧🇬"},
	"bn":    {Name: "বাংলা", English: "Bengali", Flag: "🇧🇩"},
	"bs":    {Name: "Bosanski", English: "Bosnian", Flag: "🇧🇦"},
	"ca":    {Name: "Català", English: "Catalan", Flag: "🇪🇸"},
	"cs":    {Name: "Čeština", English: "Czech", Flag: "🇨🇿"},
	"cy":    {Name: "Cymraeg", English: "Welsh", Flag: "🇬🇧"},
	"da":    {Name: "Dansk", English: "Danish", Flag: "🇩🇰"},
	"de":    {Name: "Deutsch", English: "German", Flag: "🇩🇪"},
	"de-AT": {Name: "Deutsch (Österreich)", English: "German (Austria)", Flag: "🇦🇹"},
	"de-CH": {Name: "Deutsch (Schweiz)", English: "German (Switzerland)", Flag: "🇨🇭"},
	"el":    {Name: "Ελληνικά", English: "Greek", Flag: "🇬🇷"},
	"en":    {Name: "English", English: "English", Flag: "🇺🇸"},
	"en-AU": {Name: "English (Australia)", English: "English (Australia)", Flag: "🇦🇺"},
	"en-CA": {Name: "English (Canada)", English: "English (Canada)", Flag: "🇨🇦"},
	"en-GB": {Name: "English (UK)", English: "English (UK)", Flag: "🇬🇧"},
	"en-IN": {Name: "English (India)", English: "English (India)", Flag: "🇮🇳"},
	"en-US": {Name: "English (US)", English: "English (US)", Flag: "🇺🇸"},
	"es":    {Name: "Español", English: "Spanish", Flag: "🇪🇸"},
	"es-AR": {Name: "Español (Argentina)", English: "Spanish (Argentina)", Flag: "🇦🇷"},
	"es-MX": {Name: "Español (México)", English: "Spanish (Mexico)", Flag: "🇲🇽"},
	"et":    {Name: "Eesti", English: "Estonian", Flag: "🇪🇪"},
	"eu":    {Name: "Euskara", English: "Basque", Flag: "🇪🇸"},
	"fa":    {Name: "فارسی", English: "Persian", Flag: "🇮🇷"},
	"fi":    {Name: "Suomi", English: "Finnish", Flag: "🇫🇮"},
	"fr":    {Name: "Français", English: "French", Flag: "🇫🇷"},
	"fr-BE": {Name: "Français (Belgique)", English: "French (Belgium)", Flag: "🇧🇪"},
	"fr-CA": {Name: "Français (Canada)", English: "French (Canada)", Flag: "🇨🇦"},
	"fr-CH": {Name: "Français (Suisse)", English: "French (Switzerland)", Flag: "🇨🇭"},
	"ga":    {Name: "Gaeilge", English: "Irish", Flag: "🇮🇪"},
	"gl":    {Name: "Galego", English: "Galician", Flag: "🇪🇸"},
	"gu":    {Name: "ગુજરાતી", English: "Gujarati", Flag: "🇮🇳"},
	"he":    {Name: "עברית", English: "Hebrew", Flag: "🇮🇱"},
	"hi":    {Name: "हिन्दी", English: "Hindi", Flag: "🇮🇳"},
	"hr":    {Name: "Hrvatski", English: "Croatian", Flag: "🇭🇷"},
	"hu":    {Name: "Magyar", English: "Hungarian", Flag: "🇭🇺"},
	"hy":    {Name: "Հայերեն", English: "Armenian", Flag: "🇦🇲"},
	"id":    {Name: "Bahasa Indonesia", English: "Indonesian", Flag: "🇮🇩"},
	"is":    {Name: "Íslenska", English: "Icelandic", Flag: "🇮🇸"},
	"it":    {Name: "Italiano", English: "Italian", Flag: "🇮🇹"},
	"ja":    {Name: "日本語", English: "Japanese", Flag: "🇯🇵"},
	"ka":    {Name: "ქართული", English: "Georgian", Flag: "🇬🇪"},
	"kk":    {Name: "Қазақ тілі", English: "Kazakh", Flag: "🇰🇿"},
	"km":    {Name: "ខ្មែរ", English: "Khmer", Flag: "🇰🇭"},
	"ko":    {Name: "한국어", English: "Korean", Flag: "🇰🇷"},
	"lo":    {Name: "ລາວ", English: "Lao", Flag: "🇱🇦"},
	"lt":    {Name: "Lietuvių", English: "Lithuanian", Flag: "🇱🇹"},
	"lv":    {Name: "Latviešu", English: "Latvian", Flag: "🇱🇻"},
	"mk":    {Name: "Македонски", English: "Macedonian", Flag: "🇲🇰"},
	"ml":    {Name: "മലയാളം", English: "Malayalam", Flag: "🇮🇳"},
	"mn":    {Name: "Монгол", English: "Mongolian", Flag: "🇲🇳"},
	"mr":    {Name: "मराठी", English: "Marathi", Flag: "🇮🇳"},
	"ms":    {Name: "Bahasa Melayu", English: "Malay", Flag: "🇲🇾"},
	"mt":    {Name: "Malti", English: "Maltese", Flag: "🇲🇹"},
	"my":    {Name: "မြန်မာ", English: "Burmese", Flag: "🇲🇲"},
	"ne":    {Name: "नेपाली", English: "Nepali", Flag: "🇳🇵"},
	"nl":    {Name: "Nederlands", English: "Dutch", Flag: "🇳🇱"},
	"nl-BE": {Name: "Nederlands (België)", English: "Dutch (Belgium)", Flag: "🇧🇪"},
	"nb":    {Name: "Norsk bokmål", English: "Norwegian Bokmål", Flag: "🇳🇴"},
	"nn":    {Name: "Norsk nynorsk", English: "Norwegian Nynorsk", Flag: "🇳🇴"},
	"no":    {Name: "Norsk", English: "Norwegian", Flag: "🇳🇴"},
	"pa":    {Name: "ਪੰਜਾਬੀ", English: "Punjabi", Flag: "🇮🇳"},
	"pl":    {Name: "Polski", English: "Polish", Flag: "🇵🇱"},
	"ps":    {Name: "پښتو", English: "Pashto", Flag: "🇦🇫"},
	"pt":    {Name: "Português", English: "Portuguese", Flag: "🇵🇹"},
	"pt-BR": {Name: "Português (Brasil)", English: "Portuguese (Brazil)", Flag: "🇧🇷"},
	"pt-PT": {Name: "Português (Portugal)", English: "Portuguese (Portugal)", Flag: "🇵🇹"},
	"ro":    {Name: "Română", English: "Romanian", Flag: "🇷🇴"},
	"ru":    {Name: "Русский", English: "Russian", Flag: "🇷🇺"},
	"si":    {Name: "සිංහල", English: "Sinhala", Flag: "🇱🇰"},
	"sk":    {Name: "Slovenčina", English: "Slovak", Flag: "🇸🇰"},
	"sl":    {Name: "Slovenščina", English: "Slovenian", Flag: "🇸🇮"},
	"sq":    {Name: "Shqip", English: "Albanian", Flag: "🇦🇱"},
	"sr":    {Name: "Српски", English: "Serbian", Flag: "🇷🇸"},
	"sv":    {Name: "Svenska", English: "Swedish", Flag: "🇸🇪"},
	"sw":    {Name: "Kiswahili", English: "Swahili", Flag: "🇹🇿"},
	"ta":    {Name: "தமிழ்", English: "Tamil", Flag: "🇮🇳"},
	"te":    {Name: "తెలుగు", English: "Telugu", Flag: "🇮🇳"},
	"th":    {Name: "ไทย", English: "Thai", Flag: "🇹🇭"},
	"tr":    {Name: "Türkçe", English: "Turkish", Flag: "🇹🇷"},
	"uk":    {Name: "Українська", English: "Ukrainian", Flag: "🇺🇦"},
	"ur":    {Name: "اردو", English: "Urdu", Flag: "🇵🇰"},
	"uz":    {Name: "O'zbek", English: "Uzbek", Flag: "🇺🇿"},
	"vi":    {Name: "Tiếng Việt", English: "Vietnamese", Flag: "🇻🇳"},
	"xh":    {Name: "isiXhosa", English: "Xhosa", Flag: "🇿🇦"},
	"yo":    {Name: "Yorùbá", English: "Yoruba", Flag: "🇳🇬"},
	"zh":    {Name: "中文", English: "Chinese", Flag: "🇨🇳"},
	"zh-CN": {Name: "简体中文", English: "Simplified Chinese", Flag: "🇨🇳"},
	"zh-TW": {Name: "繁體中文", English: "Traditional Chinese", Flag: "🇹🇼"},
	"zu":    {Name: "isiZulu", English: "Zulu", Flag: "🇿🇦"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks.
// Unknown codes come back with the code itself as both names.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			return m
		}
	}
	return Meta{Name: lang, English: lang}
}

// PromptName returns the name substituted for {{targetLang}}: the English
// name followed by the native one when they differ, e.g. "Russian (Русский)".
func PromptName(lang string) string {
	m := Resolve(lang)
	if m.English == "" || m.English == m.Name {
		return m.Name
	}
	return m.English + " (" + m.Name + ")"
}

// Label formats a language for CLI output: flag, native name and code.
func Label(lang string) string {
	m := Resolve(lang)
	if m.Flag == "" {
		return m.Name + " [" + lang + "]"
	}
	return m.Flag + " " + m.Name + " [" + lang + "]"
}
