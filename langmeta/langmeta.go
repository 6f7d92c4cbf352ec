// Package langmeta resolves language codes to display metadata and to the
// spellings catalogs and platforms use for them.
package langmeta

import "strings"

// Meta describes language display metadata.
type Meta struct {
	Name string
	// Region is the ISO 3166 code used for the flag.
	Region string
}

// Flag returns the emoji flag of the language region, or "".
func (m Meta) Flag() string {
	return FlagFromRegion(m.Region)
}

// Registry holds canonical language metadata keyed by BCP 47 code.
var Registry = map[string]Meta{
	"af":      {Name: "Afrikaans", Region: "ZA"},
	"ar":      {Name: "العربية", Region: "SA"},
	"be":      {Name: "Беларуская", Region: "BY"},
	"bg":      {Name: "Български", Region: "BG"},
	"bn":      {Name: "বাংলা", Region: "BD"},
	"ca":      {Name: "Català", Region: "ES"},
	"cs":      {Name: "Čeština", Region: "CZ"},
	"cy":      {Name: "Cymraeg", Region: "GB"},
	"da":      {Name: "Dansk", Region: "DK"},
	"de":      {Name: "Deutsch", Region: "DE"},
	"el":      {Name: "Ελληνικά", Region: "GR"},
	"en":      {Name: "English", Region: "US"},
	"en-GB":   {Name: "English (UK)", Region: "GB"},
	"eo":      {Name: "Esperanto"},
	"es":      {Name: "Español", Region: "ES"},
	"es-MX":   {Name: "Español (México)", Region: "MX"},
	"et":      {Name: "Eesti", Region: "EE"},
	"eu":      {Name: "Euskara", Region: "ES"},
	"fa":      {Name: "فارسی", Region: "IR"},
	"fi":      {Name: "Suomi", Region: "FI"},
	"fr":      {Name: "Français", Region: "FR"},
	"fr-CA":   {Name: "Français (Canada)", Region: "CA"},
	"ga":      {Name: "Gaeilge", Region: "IE"},
	"gl":      {Name: "Galego", Region: "ES"},
	"he":      {Name: "עברית", Region: "IL"},
	"hi":      {Name: "हिन्दी", Region: "IN"},
	"hr":      {Name: "Hrvatski", Region: "HR"},
	"hu":      {Name: "Magyar", Region: "HU"},
	"hy":      {Name: "Հայերեն", Region: "AM"},
	"id":      {Name: "Bahasa Indonesia", Region: "ID"},
	"is":      {Name: "Íslenska", Region: "IS"},
	"it":      {Name: "Italiano", Region: "IT"},
	"ja":      {Name: "日本語", Region: "JP"},
	"ka":      {Name: "ქართული", Region: "GE"},
	"kk":      {Name: "Қазақ тілі", Region: "KZ"},
	"ko":      {Name: "한국어", Region: "KR"},
	"lt":      {Name: "Lietuvių", Region: "LT"},
	"lv":      {Name: "Latviešu", Region: "LV"},
	"mk":      {Name: "Македонски", Region: "MK"},
	"ms":      {Name: "Bahasa Melayu", Region: "MY"},
	"nb":      {Name: "Norsk bokmål", Region: "NO"},
	"nl":      {Name: "Nederlands", Region: "NL"},
	"nn":      {Name: "Norsk nynorsk", Region: "NO"},
	"pl":      {Name: "Polski", Region: "PL"},
	"pt":      {Name: "Português", Region: "PT"},
	"pt-BR":   {Name: "Português (Brasil)", Region: "BR"},
	"ro":      {Name: "Română", Region: "RO"},
	"ru":      {Name: "Русский", Region: "RU"},
	"sk":      {Name: "Slovenčina", Region: "SK"},
	"sl":      {Name: "Slovenščina", Region: "SI"},
	"sq":      {Name: "Shqip", Region: "AL"},
	"sr":      {Name: "Српски", Region: "RS"},
	"sv":      {Name: "Svenska", Region: "SE"},
	"ta":      {Name: "தமிழ்", Region: "IN"},
	"th":      {Name: "ไทย", Region: "TH"},
	"tr":      {Name: "Türkçe", Region: "TR"},
	"uk":      {Name: "Українська", Region: "UA"},
	"vi":      {Name: "Tiếng Việt", Region: "VN"},
	"zh-Hans": {Name: "简体中文", Region: "CN"},
	"zh-Hant": {Name: "繁體中文", Region: "TW"},
}

// Canonicalize rewrites a locale code to BCP 47 casing: pt_br -> pt-BR,
// zh_hant -> zh-Hant. Encoding and modifier suffixes are dropped.
func Canonicalize(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return ""
	}
	parts := strings.Split(strings.ReplaceAll(lang, "_", "-"), "-")
	parts[0] = strings.ToLower(parts[0])
	for i := 1; i < len(parts); i++ {
		switch len(parts[i]) {
		case 2:
			parts[i] = strings.ToUpper(parts[i])
		case 4:
			parts[i] = strings.ToUpper(parts[i][:1]) + strings.ToLower(parts[i][1:])
		default:
			parts[i] = strings.ToLower(parts[i])
		}
	}
	return strings.Join(parts, "-")
}

// Gettext returns the code in gettext directory form: pt-BR -> pt_BR.
func Gettext(lang string) string {
	return strings.ReplaceAll(Canonicalize(lang), "-", "_")
}

// Variants lists the spellings under which a language may be stored on disk,
// lang itself first, without duplicates.
func Variants(lang string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range []string{lang, Gettext(lang), Canonicalize(lang)} {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Resolve returns best-effort metadata for a language code, falling back to
// the base language and finally to the code itself.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	canonical := Canonicalize(lang)
	if m, ok := Registry[canonical]; ok {
		return m
	}
	if base, region, ok := strings.Cut(canonical, "-"); ok {
		if m, ok := Registry[base]; ok {
			if len(region) == 2 {
				m.Region = region
			}
			return m
		}
	}
	return Meta{Name: lang}
}

// FlagFromRegion converts a two-letter region code to its emoji flag.
func FlagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	region = strings.ToUpper(region)
	var b strings.Builder
	for _, r := range region {
		if r < 'A' || r > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (r - 'A'))
	}
	return b.String()
}
