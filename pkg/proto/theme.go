package proto

import "strings"

// Theme is one entry of the closed legislative theme taxonomy.
// The classifier may only ever emit values from this set; anything else is
// collapsed to ThemeOther before it reaches storage or metrics.
type Theme string

const (
	ThemeHealth           Theme = "Saúde"
	ThemeEducation        Theme = "Educação"
	ThemeTransport        Theme = "Transporte"
	ThemeSecurity         Theme = "Segurança"
	ThemeEnvironment      Theme = "Meio Ambiente"
	ThemeHousing          Theme = "Habitação"
	ThemeCulture          Theme = "Cultura"
	ThemeSports           Theme = "Esporte"
	ThemeSocialAssistance Theme = "Assistência Social"
	ThemeInfrastructure   Theme = "Infraestrutura"
	ThemeOther            Theme = "Outros"
)

// String implements fmt.Stringer.
func (t Theme) String() string {
	return string(t)
}

// Themes returns the full closed taxonomy, ThemeOther last.
func Themes() []Theme {
	return []Theme{
		ThemeHealth,
		ThemeEducation,
		ThemeTransport,
		ThemeSecurity,
		ThemeEnvironment,
		ThemeHousing,
		ThemeCulture,
		ThemeSports,
		ThemeSocialAssistance,
		ThemeInfrastructure,
		ThemeOther,
	}
}

// CurationAreas returns the themes selectable in the curation menu. Digits
// 1 through 9 map to these in order; option 10 selects all areas.
func CurationAreas() []Theme {
	return Themes()[:9]
}

// ParseTheme matches a raw string against the taxonomy, case-insensitively.
// Returns false when the value is outside the closed set.
func ParseTheme(raw string) (Theme, bool) {
	candidate := strings.TrimSpace(raw)
	for _, t := range Themes() {
		if strings.EqualFold(candidate, string(t)) {
			return t, true
		}
	}
	return ThemeOther, false
}
