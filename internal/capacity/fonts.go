package capacity

import (
	"strings"
)

// fontAliases maps the short resource names PDF forms put in /DA
var fontAliases = map[string]string{
	"Helv": "Helvetica",
	"HeBo": "Helvetica",
	"TiRo": "Times",
	"TiBo": "Times",
	"Cour": "Courier",
	"CoBo": "Courier",
}

// knownFamilies are matched by case-insensitive prefix, in order
var knownFamilies = []string{"Helvetica", "Arial", "Times", "Courier", "Calibri", "Verdana"}

// DefaultWidthFactors is the average glyph width per point of font size
func DefaultWidthFactors() map[string]float64 {
	return map[string]float64{
		"Helvetica": 0.52,
		"Arial":     0.52,
		"Times":     0.45,
		"Courier":   0.60,
		"Calibri":   0.48,
		"Verdana":   0.58,
	}
}

// ResolveFamily maps a font hint to a known family name. Unknown non-empty
// hints are returned trimmed; an empty hint yields fallback.
func ResolveFamily(hint, fallback string) string {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(hint), "/"))
	if h == "" {
		return fallback
	}
	if alias, ok := fontAliases[h]; ok {
		return alias
	}

	// Subset prefixes look like "ABCDEF+Arial-BoldMT".
	if plus := strings.IndexByte(h, '+'); plus == 6 {
		h = h[plus+1:]
	}

	lower := strings.ToLower(h)
	for _, family := range knownFamilies {
		if strings.HasPrefix(lower, strings.ToLower(family)) {
			return family
		}
	}
	return h
}

// widthFactor returns the configured factor for family, or the default
func (e *Estimator) widthFactor(family string) float64 {
	if f, ok := e.config.WidthFactors[family]; ok && f > 0 {
		return f
	}
	for name, f := range e.config.WidthFactors {
		if f > 0 && strings.EqualFold(name, family) {
			return f
		}
	}
	return e.config.DefaultWidthFactor
}
